package pointcloud

import (
	"bytes"
	"encoding/binary"
	"image/color"
	"io"
	"math"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"github.com/seqsense/pcgol/pc"
)

// pcdHeader is the layout ToPCD writes. Every field is four bytes; rgb is packed 0x00RRGGBB.
const pcdHeader = "VERSION .7\n" +
	"FIELDS x y z normal_x normal_y normal_z rgb\n" +
	"SIZE 4 4 4 4 4 4 4\n" +
	"TYPE F F F F F F U\n" +
	"COUNT 1 1 1 1 1 1 1\n" +
	"WIDTH 0\n" +
	"HEIGHT 1\n" +
	"VIEWPOINT 0 0 0 1 0 0 0\n" +
	"POINTS 0\n" +
	"DATA binary\n"

const pcdStride = 28

func colorToPCDInt(c color.NRGBA) uint32 {
	return (uint32(c.R) << 16) | (uint32(c.G) << 8) | uint32(c.B)
}

func pcdIntToColor(c uint32) color.NRGBA {
	return color.NRGBA{R: uint8((c >> 16) & 0xFF), G: uint8((c >> 8) & 0xFF), B: uint8(c & 0xFF), A: 255}
}

// ToPCD writes the cloud as binary PCD with positions, normals and packed rgb colors.
func ToPCD(cloud *PointCloud, out io.Writer) error {
	pp, err := pc.Unmarshal(strings.NewReader(pcdHeader))
	if err != nil {
		return errors.Wrap(err, "building pcd header")
	}
	n := cloud.Size()
	pp.Width = n
	pp.Height = 1
	pp.Points = n
	pp.Data = make([]byte, n*pcdStride)

	cloud.Iterate(func(i int, p Point) bool {
		rec := pp.Data[i*pcdStride:]
		vals := [6]float64{p.Position.X, p.Position.Y, p.Position.Z, p.Normal.X, p.Normal.Y, p.Normal.Z}
		for j, v := range vals {
			binary.LittleEndian.PutUint32(rec[4*j:], math.Float32bits(float32(v)))
		}
		binary.LittleEndian.PutUint32(rec[24:], colorToPCDInt(p.Color))
		return true
	})
	return pc.Marshal(pp, out)
}

// pcdField locates one named field inside a record.
type pcdField struct {
	offset int
	size   int
	typ    string
}

func (f pcdField) float(rec []byte) float64 {
	if f.size == 8 {
		return math.Float64frombits(binary.LittleEndian.Uint64(rec[f.offset:]))
	}
	bits := binary.LittleEndian.Uint32(rec[f.offset:])
	switch f.typ {
	case "U":
		return float64(bits)
	case "I":
		return float64(int32(bits))
	}
	return math.Round(float64(math.Float32frombits(bits))*10000) / 10000
}

func pcdFields(pp *pc.PointCloud) (map[string]pcdField, int, error) {
	fields := map[string]pcdField{}
	offset := 0
	for i, name := range pp.Fields {
		if i >= len(pp.Size) || i >= len(pp.Type) {
			return nil, 0, errors.Errorf("field %s has no size or type", name)
		}
		count := 1
		if i < len(pp.Count) {
			count = pp.Count[i]
		}
		size := pp.Size[i]
		if size != 4 && size != 8 {
			return nil, 0, errors.Errorf("unsupported size %d for field %s", size, name)
		}
		fields[name] = pcdField{offset: offset, size: size, typ: pp.Type[i]}
		offset += size * count
	}
	for _, name := range []string{"x", "y", "z"} {
		if _, ok := fields[name]; !ok {
			return nil, 0, errors.Errorf("pcd has no %s field", name)
		}
	}
	return fields, offset, nil
}

// checkPCDSize rejects files whose header claims more data than the body could hold, before
// anything is allocated for it.
func checkPCDSize(raw []byte) error {
	var sizes, counts []uint64
	var points uint64
	rest := raw
	for len(rest) > 0 {
		line := rest
		next := len(rest)
		if i := bytes.IndexByte(rest, '\n'); i >= 0 {
			line, next = rest[:i], i+1
		}
		rest = rest[next:]

		tokens := strings.Fields(string(line))
		if len(tokens) == 0 || strings.HasPrefix(tokens[0], "#") {
			continue
		}
		var err error
		switch tokens[0] {
		case "SIZE":
			sizes, err = parseUints(tokens[1:])
		case "COUNT":
			counts, err = parseUints(tokens[1:])
		case "POINTS":
			points, err = parseUints1(tokens[1:])
		case "DATA":
			if len(tokens) != 2 {
				return errors.New("malformed DATA line")
			}
			return checkPCDBody(tokens[1], sizes, counts, points, uint64(len(rest)))
		}
		if err != nil {
			return errors.Wrapf(err, "invalid %s field", tokens[0])
		}
	}
	return errors.New("pcd header has no DATA line")
}

func checkPCDBody(data string, sizes, counts []uint64, points, body uint64) error {
	if data != "binary" && data != "ascii" {
		return errors.Errorf("unsupported pcd data type %s", data)
	}
	var stride uint64
	for i, size := range sizes {
		count := uint64(1)
		if i < len(counts) {
			count = counts[i]
		}
		if size > 8 || count > body {
			return errors.Errorf("field %d is larger than the file", i)
		}
		stride += size * count
	}
	if points > body {
		return errors.Errorf("POINTS %d exceeds the %d bytes of data", points, body)
	}
	if data == "binary" && points*stride > body {
		return errors.Errorf("POINTS %d needs %d bytes but only %d are present", points, points*stride, body)
	}
	// an ascii value takes at least two bytes of text and at most eight once decoded
	if data == "ascii" && points*stride > 4*body {
		return errors.Errorf("POINTS %d exceeds the %d bytes of data", points, body)
	}
	return nil
}

func parseUints(tokens []string) ([]uint64, error) {
	out := make([]uint64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseUint(tok, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func parseUints1(tokens []string) (uint64, error) {
	if len(tokens) != 1 {
		return 0, errors.New("expected a single value")
	}
	return strconv.ParseUint(tokens[0], 10, 64)
}

// ReadPCD reads a binary or ascii pcd file. Missing normals read as zero and missing colors
// read as opaque black.
func ReadPCD(in io.Reader) (*PointCloud, error) {
	raw, err := io.ReadAll(in)
	if err != nil {
		return nil, errors.Wrap(err, "reading pcd")
	}
	if err := checkPCDSize(raw); err != nil {
		return nil, err
	}
	pp, err := pc.Unmarshal(bytes.NewReader(raw))
	if err != nil {
		return nil, errors.Wrap(err, "decoding pcd")
	}
	fields, stride, err := pcdFields(pp)
	if err != nil {
		return nil, err
	}
	if len(pp.Data) < pp.Points*stride {
		return nil, errors.Errorf("pcd holds %d bytes, %d points need %d", len(pp.Data), pp.Points, pp.Points*stride)
	}

	nx, hasNormals := fields["normal_x"]
	ny := fields["normal_y"]
	nz := fields["normal_z"]
	rgb, hasColor := fields["rgb"]
	cloud := NewWithPrealloc(pp.Points)
	for i := 0; i < pp.Points; i++ {
		rec := pp.Data[i*stride : (i+1)*stride]
		p := Point{
			Position: r3.Vector{X: fields["x"].float(rec), Y: fields["y"].float(rec), Z: fields["z"].float(rec)},
			Color:    color.NRGBA{A: 255},
		}
		if hasNormals {
			p.Normal = r3.Vector{X: nx.float(rec), Y: ny.float(rec), Z: nz.float(rec)}
		}
		if hasColor && rgb.size == 4 {
			p.Color = pcdIntToColor(binary.LittleEndian.Uint32(rec[rgb.offset:]))
		}
		cloud.Append(p)
	}
	return cloud, nil
}
