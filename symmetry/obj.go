package symmetry

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

// ParseOBJ reads the vertex positions of a Wavefront OBJ stream. Vertex ids are
// 0-based in file order; every other statement is ignored.
func ParseOBJ(r io.Reader) ([]Point, error) {
	var points []Point
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 || fields[0] != "v" {
			continue
		}
		co, err := parseVertex(fields)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidSnapshot, line, err)
		}
		points = append(points, Point{ID: len(points), Co: co})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading OBJ: %w", err)
	}
	return points, nil
}

func parseVertex(fields []string) (r3.Vec, error) {
	if len(fields) < 4 {
		return r3.Vec{}, fmt.Errorf("vertex needs 3 coordinates, got %d", len(fields)-1)
	}
	var c [3]float64
	for i := range c {
		f, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return r3.Vec{}, err
		}
		c[i] = f
	}
	return fromArray(c), nil
}

// RewriteOBJ copies an OBJ stream to w, replacing the vertex lines whose 0-based
// index appears in updated. Any trailing w component is preserved.
func RewriteOBJ(r io.Reader, w io.Writer, updated map[int]r3.Vec) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	bw := bufio.NewWriter(w)
	vertex := 0
	for sc.Scan() {
		text := sc.Text()
		fields := strings.Fields(text)
		if len(fields) > 0 && fields[0] == "v" {
			if co, ok := updated[vertex]; ok && len(fields) >= 4 {
				text = formatVertex(co, fields[4:])
			}
			vertex++
		}
		if _, err := bw.WriteString(text + "\n"); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading OBJ: %w", err)
	}
	return bw.Flush()
}

func formatVertex(co r3.Vec, extra []string) string {
	parts := []string{
		"v",
		strconv.FormatFloat(co.X, 'g', -1, 64),
		strconv.FormatFloat(co.Y, 'g', -1, 64),
		strconv.FormatFloat(co.Z, 'g', -1, 64),
	}
	return strings.Join(append(parts, extra...), " ")
}
