package bao

// Version is the binding version, set at build time with
// -ldflags "-X github.com/stregato/bao-go/pkg/bao.Version=...".
var Version = "v0.0.0-in-progress"
