package spatialmath

import (
	"fmt"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
)

// Axis names one of the three coordinate axes.
type Axis int

// The coordinate axes.
const (
	AxisX Axis = iota
	AxisY
	AxisZ
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	default:
		return "unknown"
	}
}

// AxisFromString parses "x", "y" or "z" in any case.
func AxisFromString(s string) (Axis, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "X":
		return AxisX, nil
	case "Y":
		return AxisY, nil
	case "Z":
		return AxisZ, nil
	default:
		return AxisX, errors.Errorf("unknown axis %q", s)
	}
}

// OpKind is the kind of a single transform operation.
type OpKind int

// Supported transform operations.
const (
	OpTranslate OpKind = iota
	OpRotateX
	OpRotateY
	OpRotateZ
	OpScale
)

func (k OpKind) String() string {
	switch k {
	case OpTranslate:
		return "translate"
	case OpRotateX:
		return "rotateX"
	case OpRotateY:
		return "rotateY"
	case OpRotateZ:
		return "rotateZ"
	case OpScale:
		return "scale"
	default:
		return "unknown"
	}
}

// XformOp is one entry of a prim's ordered transform-op stack. Vector is used by
// translate and scale; Degrees by the rotations.
type XformOp struct {
	Kind    OpKind
	Vector  r3.Vector
	Degrees float64
}

// Translate returns a translate op.
func Translate(v r3.Vector) XformOp {
	return XformOp{Kind: OpTranslate, Vector: v}
}

// Scale returns a scale op.
func Scale(v r3.Vector) XformOp {
	return XformOp{Kind: OpScale, Vector: v}
}

// RotateAbout returns a rotation op of the given angle in degrees about axis.
func RotateAbout(axis Axis, degrees float64) XformOp {
	switch axis {
	case AxisY:
		return XformOp{Kind: OpRotateY, Degrees: degrees}
	case AxisZ:
		return XformOp{Kind: OpRotateZ, Degrees: degrees}
	default:
		return XformOp{Kind: OpRotateX, Degrees: degrees}
	}
}

// Matrix returns the op as a column-vector homogeneous transform.
func (op XformOp) Matrix() mgl64.Mat4 {
	switch op.Kind {
	case OpTranslate:
		return mgl64.Translate3D(op.Vector.X, op.Vector.Y, op.Vector.Z)
	case OpScale:
		return mgl64.Scale3D(op.Vector.X, op.Vector.Y, op.Vector.Z)
	case OpRotateX:
		return mgl64.HomogRotate3DX(mgl64.DegToRad(op.Degrees))
	case OpRotateY:
		return mgl64.HomogRotate3DY(mgl64.DegToRad(op.Degrees))
	case OpRotateZ:
		return mgl64.HomogRotate3DZ(mgl64.DegToRad(op.Degrees))
	default:
		return mgl64.Ident4()
	}
}

func (op XformOp) String() string {
	if op.Kind == OpTranslate || op.Kind == OpScale {
		return fmt.Sprintf("%s%v", op.Kind, op.Vector)
	}
	return fmt.Sprintf("%s(%g)", op.Kind, op.Degrees)
}

// ComposeOps returns the local transform of an ordered op stack. The first op is the
// outermost: points are transformed by the last op first.
func ComposeOps(ops []XformOp) mgl64.Mat4 {
	m := mgl64.Ident4()
	for _, op := range ops {
		m = m.Mul4(op.Matrix())
	}
	return m
}

// TransformPoint applies m to the point p.
func TransformPoint(m mgl64.Mat4, p r3.Vector) r3.Vector {
	v := m.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
	if v[3] != 0 && v[3] != 1 {
		return r3.Vector{X: v[0] / v[3], Y: v[1] / v[3], Z: v[2] / v[3]}
	}
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// TransformDirection applies only the linear part of m to d.
func TransformDirection(m mgl64.Mat4, d r3.Vector) r3.Vector {
	v := m.Mat3().Mul3x1(mgl64.Vec3{d.X, d.Y, d.Z})
	return r3.Vector{X: v[0], Y: v[1], Z: v[2]}
}

// NormalMatrix returns the inverse-transpose of the linear part of m, which maps surface
// normals the way m maps surfaces.
func NormalMatrix(m mgl64.Mat4) mgl64.Mat3 {
	return m.Mat3().Inv().Transpose()
}

// RowVectorForm returns m laid out for row-vector multiplication, i.e. [x y z 1] * R
// equals (m * [x y z 1]^T)^T. The 16 values are in row-major order.
func RowVectorForm(m mgl64.Mat4) []float64 {
	t := m.Transpose()
	out := make([]float64, 0, 16)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out = append(out, t.At(row, col))
		}
	}
	return out
}

// Translation returns the translation column of m.
func Translation(m mgl64.Mat4) r3.Vector {
	c := m.Col(3)
	return r3.Vector{X: c[0], Y: c[1], Z: c[2]}
}
