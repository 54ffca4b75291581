// Package archive persists received frames for offline inspection.
//
// A Store writes each frame as a raw RGBA blob plus a small JSON
// sidecar carrying the dimensions, timestamps, and pose correlation
// fields. Raw blobs keep the write path allocation-free and make the
// dumps trivially loadable: width*height*4 bytes, row-major, no
// container format to parse.
//
// Two implementations are provided: DiskStore for local capture
// directories and S3Store for long-term retention. A Sink drains a
// dispatcher channel into a Store on its own goroutine so that slow
// storage never stalls the connection read loop.
package archive
