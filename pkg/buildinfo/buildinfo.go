package buildinfo

// Version is set at link time, eg -ldflags "-X github.com/cyclopcam/henhouse/pkg/buildinfo.Version=1.2.0"
var Version = "dev"

// Multiarch is filled in by the Debian build system.
// It's the directory you see in /usr/lib/XXX, such as /usr/lib/x86_64-linux-gnu, or /usr/lib/aarch64-linux-gnu.
// The package ships its copy of onnxruntime inside this, eg /usr/lib/aarch64-linux-gnu/henhouse/libonnxruntime.so
// If the value of Multiarch is "unknown", then we ignore this path.
var Multiarch = "unknown"

// PackagedLibDir returns the directory of our packaged shared libraries, or an empty string if we weren't built as a package
func PackagedLibDir() string {
	if Multiarch == "unknown" || Multiarch == "" {
		return ""
	}
	return "/usr/lib/" + Multiarch + "/henhouse"
}
