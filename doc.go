// Package filemask obfuscates files and directories in place using a
// password-derived, reversible byte substitution.
//
// # Overview
//
// A Masker works on any absfs.FileSystem. For each processed target it keeps
// a sidecar record in a hidden container directory next to the target
// (".filemask" by default). The record says which encodings are applied, who
// owns them, and holds whatever is needed to undo them, so no key material is
// stored anywhere else.
//
// # Encode Types
//
//   - EncodeName: the target (file or directory) is renamed to a random UUID;
//     the original name is kept in the sidecar.
//   - EncodeHeader: the first 32 bytes of a file are replaced with noise; the
//     original bytes are kept in the sidecar. Files shorter than 32 bytes are
//     left untouched.
//   - EncodeContent: every byte of a file is passed through a random
//     permutation of the 256 byte values (the encode map).
//
// Name encoding combines with either of the others. Header and content
// encoding exclude each other.
//
// # Links
//
// DirectoryShallow processes every direct child, links included, so a link
// to a file has the file behind it encoded. DirectoryCascade does the same
// but never descends into a link to a directory (SkipSymlink), and a
// directory reached twice is reported as SkipCycle.
//
// # Basic Usage
//
//	m, err := filemask.New(filemask.NewOSFS(), nil)
//	if err != nil {
//	    panic(err)
//	}
//
//	report, err := m.Encrypt("/home/me/notes", filemask.DirectoryCascade,
//	    filemask.EncodeContent, []byte("password"))
//	if err != nil {
//	    // only a missing target or bad arguments end up here
//	    panic(err)
//	}
//	for _, r := range report.Skips() {
//	    fmt.Println(r.Path, r.Outcome)
//	}
//
// # Sidecar Format
//
// Records have a fixed layout (see file_format.go): a 16-byte ownership tag
// (MD5 of the password XORed with a PBKDF2-derived 32-byte pad), three flag
// bytes, the masked 256-byte encode map at offset 32, a 32-byte header
// payload at offset 288 and a variable name payload from offset 320.
//
// # Security Considerations
//
// This is obfuscation, not encryption. A single substitution table per file
// falls to frequency analysis or any known plaintext. Use it to keep casual
// eyes and indexers away from files, nothing more.
//
// # Concurrency
//
// Calls on one Masker are serialized for their full duration. Sidecar
// updates are sequences of seek and write calls, so two Maskers must never
// work on overlapping trees at the same time.
package filemask
