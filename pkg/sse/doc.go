// Package sse reads a Server-Sent Events body with a hard per-line size cap.
// It exists because bufio.Scanner's default token buffer either truncates
// silently or requires a growable buffer with no clean over-limit signal;
// callers here get an explicit error the moment a line would exceed the cap.
package sse
