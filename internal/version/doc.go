// Package version derives a version string for a file on disk.
//
// The strategy is picked from the file extension:
//
//	.exe .dll .sys .ocx .cpl .drv  -> StrategyBinaryVersion ("a.b.c.d" from the RT_VERSION resource)
//	anything else                  -> StrategyContentHash   (hex SHA-256 of the content)
//
// Every failure is wrapped in ErrResolve so callers can record it against the
// file without inspecting the cause.
package version
