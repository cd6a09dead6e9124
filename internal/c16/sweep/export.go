package sweep

import (
	"bufio"
	"fmt"
	"io"
)

// WriteASC writes the sweep's Cartesian points in CloudCompare .asc format:
// one "x y z intensity" line per point.
func WriteASC(w io.Writer, s *Sweep) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintln(bw, "//X Y Z Intensity"); err != nil {
		return err
	}
	for _, p := range s.Points() {
		if _, err := fmt.Fprintf(bw, "%.4f %.4f %.4f %d\n", p.X, p.Y, p.Z, p.Intensity); err != nil {
			return err
		}
	}
	return bw.Flush()
}
