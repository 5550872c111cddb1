// Package compression provides an RLE8-plus-gzip codec for TFS images. No
// compressed image fixture is checked into the tree.
//
// A formatted-but-mostly-empty TFS image is almost entirely null bytes: the
// inode table has 1024 mostly-unused 256-byte slots, and the data region is
// 16384 blocks most of which are never allocated. Run-length encoding the raw
// image before gzipping it shrinks a multi-megabyte fixture down to a few
// hundred bytes, which is small enough to embed directly in the repository.
//
// This uses the same RLE8 encoding as the Microsoft BMP file format: if a
// byte B occurs N times where N >= 2, B is written twice, followed by a third
// (unsigned) byte indicating how many additional times B occurred. For
// example:
//
//	WXXXXXXXXXXXXXXXYZZ
//	W XX 13 Y ZZ 0
//
// This scheme lets us represent runs of up to 257 bytes with three bytes. For
// runs longer than 257 bytes, they are treated as separate runs. For example,
// a run of 300 "X" is represented as `XX 255 XX 41`.
package compression
