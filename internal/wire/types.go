package wire

import "github.com/chewxy/math32"

// Vec3 is a single-precision 3D vector.
type Vec3 [3]float32

func (v Vec3) Add(o Vec3) Vec3 { return Vec3{v[0] + o[0], v[1] + o[1], v[2] + o[2]} }

func (v Vec3) Sub(o Vec3) Vec3 { return Vec3{v[0] - o[0], v[1] - o[1], v[2] - o[2]} }

func (v Vec3) Scale(s float32) Vec3 { return Vec3{v[0] * s, v[1] * s, v[2] * s} }

func (v Vec3) Cross(o Vec3) Vec3 {
	return Vec3{
		v[1]*o[2] - v[2]*o[1],
		v[2]*o[0] - v[0]*o[2],
		v[0]*o[1] - v[1]*o[0],
	}
}

// Len returns the Euclidean length.
func (v Vec3) Len() float32 { return math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2]) }

// Normalize returns the unit vector, or the zero vector when v has no length.
func (v Vec3) Normalize() Vec3 {
	l := v.Len()
	if l == 0 {
		return Vec3{}
	}
	return v.Scale(1 / l)
}

// Finite reports whether every component is a finite number.
func (v Vec3) Finite() bool {
	for _, c := range v {
		if math32.IsNaN(c) || math32.IsInf(c, 0) {
			return false
		}
	}
	return true
}

// View is a camera eye position and the point it looks at.
type View struct {
	Position Vec3
	LookAt   Vec3
}

// Face is one triangle as three indices into Mesh.Vertices.
type Face [3]int32

// Mesh is an indexed triangle list. A nil slice is the canonical empty
// form: decoding never yields a non-nil empty Vertices or Faces.
type Mesh struct {
	Vertices []Vec3
	Faces    []Face
}

// Kind identifies a Message variant.
type Kind uint8

const (
	KindMesh Kind = iota + 1
	KindSetView
	KindRequestView
)

func (k Kind) String() string {
	switch k {
	case KindMesh:
		return "mesh"
	case KindSetView:
		return "set_view"
	case KindRequestView:
		return "request_view"
	default:
		return "unknown"
	}
}

// ResponseKind identifies a Response variant.
type ResponseKind uint8

const (
	ResponseGetView ResponseKind = iota + 1
	ResponseOther
)

func (k ResponseKind) String() string {
	switch k {
	case ResponseGetView:
		return "get_view"
	case ResponseOther:
		return "other"
	default:
		return "unknown"
	}
}

// Message is sent from a producer to the viewer. The implementations are
// MeshMessage, SetViewMessage and RequestViewMessage.
type Message interface {
	Kind() Kind
	isMessage()
}

// MeshMessage replaces the displayed mesh.
type MeshMessage struct {
	Mesh Mesh
}

// SetViewMessage moves the camera.
type SetViewMessage struct {
	View View
}

// RequestViewMessage asks for the current camera view; it is answered with
// exactly one GetViewResponse.
type RequestViewMessage struct{}

func (MeshMessage) Kind() Kind        { return KindMesh }
func (SetViewMessage) Kind() Kind     { return KindSetView }
func (RequestViewMessage) Kind() Kind { return KindRequestView }

func (MeshMessage) isMessage()        {}
func (SetViewMessage) isMessage()     {}
func (RequestViewMessage) isMessage() {}

// Response is sent from the viewer back to a producer.
type Response interface {
	Kind() ResponseKind
	isResponse()
}

// GetViewResponse carries a copy of the viewer camera.
type GetViewResponse struct {
	View View
}

// OtherResponse is reserved for future non-view replies.
type OtherResponse struct{}

func (GetViewResponse) Kind() ResponseKind { return ResponseGetView }
func (OtherResponse) Kind() ResponseKind   { return ResponseOther }

func (GetViewResponse) isResponse() {}
func (OtherResponse) isResponse()   {}

// Canonical returns msg in value form. Pointer variants are dereferenced so
// consumers only ever switch on MeshMessage, SetViewMessage and
// RequestViewMessage. A nil pointer yields nil.
func Canonical(msg Message) Message {
	switch m := msg.(type) {
	case *MeshMessage:
		if m == nil {
			return nil
		}
		return *m
	case *SetViewMessage:
		if m == nil {
			return nil
		}
		return *m
	case *RequestViewMessage:
		if m == nil {
			return nil
		}
		return *m
	default:
		return msg
	}
}

// ExpectedResponse reports the response kind the peer must answer msg with.
// ok is false for fire-and-forget messages.
func ExpectedResponse(msg Message) (kind ResponseKind, ok bool) {
	switch Canonical(msg).(type) {
	case RequestViewMessage:
		return ResponseGetView, true
	default:
		return 0, false
	}
}

// RequiresResponse reports whether the peer must answer msg before the
// connection carries anything else.
func RequiresResponse(msg Message) bool {
	_, ok := ExpectedResponse(msg)
	return ok
}
