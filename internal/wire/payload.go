package wire

import (
	"errors"
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers. Each union variant owns one length-delimited field so the
// tag alone identifies it.
const (
	fieldMsgMesh        protowire.Number = 1
	fieldMsgSetView     protowire.Number = 2
	fieldMsgRequestView protowire.Number = 3

	fieldRespGetView protowire.Number = 1
	fieldRespOther   protowire.Number = 2

	fieldMeshVertices protowire.Number = 1
	fieldMeshFaces    protowire.Number = 2

	fieldArrayShape protowire.Number = 1
	fieldArrayData  protowire.Number = 2

	fieldViewPosition protowire.Number = 1
	fieldViewLookAt   protowire.Number = 2
)

// ErrDecode reports a payload that does not decode into a known variant.
var ErrDecode = errors.New("wire: decode error")

func decodeErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrDecode, fmt.Sprintf(format, args...))
}

// EncodeMessage serializes msg into a payload (no length prefix).
func EncodeMessage(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case MeshMessage:
		return protowire.AppendBytes(protowire.AppendTag(nil, fieldMsgMesh, protowire.BytesType), appendMesh(nil, m.Mesh)), nil
	case *MeshMessage:
		return EncodeMessage(*m)
	case SetViewMessage:
		return protowire.AppendBytes(protowire.AppendTag(nil, fieldMsgSetView, protowire.BytesType), appendView(nil, m.View)), nil
	case *SetViewMessage:
		return EncodeMessage(*m)
	case RequestViewMessage, *RequestViewMessage:
		return protowire.AppendBytes(protowire.AppendTag(nil, fieldMsgRequestView, protowire.BytesType), nil), nil
	case nil:
		return nil, errors.New("wire: encode nil message")
	default:
		return nil, fmt.Errorf("wire: encode unsupported message %T", msg)
	}
}

// EncodeResponse serializes resp into a payload (no length prefix).
func EncodeResponse(resp Response) ([]byte, error) {
	switch r := resp.(type) {
	case GetViewResponse:
		return protowire.AppendBytes(protowire.AppendTag(nil, fieldRespGetView, protowire.BytesType), appendView(nil, r.View)), nil
	case *GetViewResponse:
		return EncodeResponse(*r)
	case OtherResponse, *OtherResponse:
		return protowire.AppendBytes(protowire.AppendTag(nil, fieldRespOther, protowire.BytesType), nil), nil
	case nil:
		return nil, errors.New("wire: encode nil response")
	default:
		return nil, fmt.Errorf("wire: encode unsupported response %T", resp)
	}
}

// DecodeMessage parses a payload produced by EncodeMessage.
func DecodeMessage(payload []byte) (Message, error) {
	num, body, err := decodeUnion(payload)
	if err != nil {
		return nil, err
	}
	switch num {
	case fieldMsgMesh:
		mesh, err := decodeMesh(body)
		if err != nil {
			return nil, err
		}
		return MeshMessage{Mesh: mesh}, nil
	case fieldMsgSetView:
		view, err := decodeView(body)
		if err != nil {
			return nil, err
		}
		return SetViewMessage{View: view}, nil
	case fieldMsgRequestView:
		if len(body) != 0 {
			return nil, decodeErr("request_view carries %d unexpected bytes", len(body))
		}
		return RequestViewMessage{}, nil
	default:
		return nil, decodeErr("unknown message variant %d", num)
	}
}

// DecodeResponse parses a payload produced by EncodeResponse.
func DecodeResponse(payload []byte) (Response, error) {
	num, body, err := decodeUnion(payload)
	if err != nil {
		return nil, err
	}
	switch num {
	case fieldRespGetView:
		view, err := decodeView(body)
		if err != nil {
			return nil, err
		}
		return GetViewResponse{View: view}, nil
	case fieldRespOther:
		if len(body) != 0 {
			return nil, decodeErr("other response carries %d unexpected bytes", len(body))
		}
		return OtherResponse{}, nil
	default:
		return nil, decodeErr("unknown response variant %d", num)
	}
}

// decodeUnion reads the single length-delimited variant field of a payload.
func decodeUnion(payload []byte) (protowire.Number, []byte, error) {
	if len(payload) == 0 {
		return 0, nil, decodeErr("empty payload")
	}
	num, typ, n := protowire.ConsumeTag(payload)
	if n < 0 {
		return 0, nil, decodeErr("variant tag: %v", protowire.ParseError(n))
	}
	if typ != protowire.BytesType {
		return 0, nil, decodeErr("variant %d has wire type %d, want bytes", num, typ)
	}
	body, m := protowire.ConsumeBytes(payload[n:])
	if m < 0 {
		return 0, nil, decodeErr("variant %d body: %v", num, protowire.ParseError(m))
	}
	if rest := len(payload) - n - m; rest != 0 {
		return 0, nil, decodeErr("%d trailing bytes after variant %d", rest, num)
	}
	return num, body, nil
}

// fields walks a message body, handing each length-delimited field to fn.
// Every field must be length-delimited and appear at most once.
func fields(body []byte, fn func(num protowire.Number, value []byte) error) error {
	seen := map[protowire.Number]bool{}
	for len(body) > 0 {
		num, typ, n := protowire.ConsumeTag(body)
		if n < 0 {
			return decodeErr("field tag: %v", protowire.ParseError(n))
		}
		if typ != protowire.BytesType {
			return decodeErr("field %d has wire type %d, want bytes", num, typ)
		}
		value, m := protowire.ConsumeBytes(body[n:])
		if m < 0 {
			return decodeErr("field %d: %v", num, protowire.ParseError(m))
		}
		if seen[num] {
			return decodeErr("field %d repeated", num)
		}
		seen[num] = true
		if err := fn(num, value); err != nil {
			return err
		}
		body = body[n+m:]
	}
	return nil
}

func appendView(b []byte, v View) []byte {
	b = protowire.AppendTag(b, fieldViewPosition, protowire.BytesType)
	b = protowire.AppendBytes(b, appendFloats(nil, v.Position[:]))
	b = protowire.AppendTag(b, fieldViewLookAt, protowire.BytesType)
	return protowire.AppendBytes(b, appendFloats(nil, v.LookAt[:]))
}

func decodeView(body []byte) (View, error) {
	var view View
	var havePos, haveLook bool
	err := fields(body, func(num protowire.Number, value []byte) error {
		var dst *Vec3
		switch num {
		case fieldViewPosition:
			dst, havePos = &view.Position, true
		case fieldViewLookAt:
			dst, haveLook = &view.LookAt, true
		default:
			return decodeErr("unknown view field %d", num)
		}
		floats, err := consumeFloats(value)
		if err != nil {
			return err
		}
		if len(floats) != 3 {
			return decodeErr("view vector has %d components, want 3", len(floats))
		}
		copy(dst[:], floats)
		return nil
	})
	if err != nil {
		return View{}, err
	}
	if !havePos || !haveLook {
		return View{}, decodeErr("view is missing position or look_at")
	}
	return view, nil
}

func appendMesh(b []byte, m Mesh) []byte {
	verts := make([]float32, 0, 3*len(m.Vertices))
	for _, v := range m.Vertices {
		verts = append(verts, v[:]...)
	}
	arr := appendShape(nil, len(m.Vertices), 3)
	arr = protowire.AppendTag(arr, fieldArrayData, protowire.BytesType)
	arr = protowire.AppendBytes(arr, appendFloats(nil, verts))
	b = protowire.AppendTag(b, fieldMeshVertices, protowire.BytesType)
	b = protowire.AppendBytes(b, arr)

	idx := make([]byte, 0, 3*len(m.Faces))
	for _, f := range m.Faces {
		for _, i := range f {
			idx = protowire.AppendVarint(idx, protowire.EncodeZigZag(int64(i)))
		}
	}
	arr = appendShape(nil, len(m.Faces), 3)
	arr = protowire.AppendTag(arr, fieldArrayData, protowire.BytesType)
	arr = protowire.AppendBytes(arr, idx)
	b = protowire.AppendTag(b, fieldMeshFaces, protowire.BytesType)
	return protowire.AppendBytes(b, arr)
}

func decodeMesh(body []byte) (Mesh, error) {
	var mesh Mesh
	var haveVerts, haveFaces bool
	err := fields(body, func(num protowire.Number, value []byte) error {
		switch num {
		case fieldMeshVertices:
			haveVerts = true
			rows, data, err := decodeArray(value)
			if err != nil {
				return fmt.Errorf("vertices: %w", err)
			}
			floats, err := consumeFloats(data)
			if err != nil {
				return fmt.Errorf("vertices: %w", err)
			}
			if uint64(len(floats)) != rows*3 {
				return decodeErr("vertices shape [%d,3] holds %d values", rows, len(floats))
			}
			if rows > 0 {
				mesh.Vertices = make([]Vec3, rows)
				for i := range mesh.Vertices {
					copy(mesh.Vertices[i][:], floats[3*i:3*i+3])
				}
			}
		case fieldMeshFaces:
			haveFaces = true
			rows, data, err := decodeArray(value)
			if err != nil {
				return fmt.Errorf("faces: %w", err)
			}
			ints, err := consumeInts(data)
			if err != nil {
				return fmt.Errorf("faces: %w", err)
			}
			if uint64(len(ints)) != rows*3 {
				return decodeErr("faces shape [%d,3] holds %d values", rows, len(ints))
			}
			if rows > 0 {
				mesh.Faces = make([]Face, rows)
				for i := range mesh.Faces {
					copy(mesh.Faces[i][:], ints[3*i:3*i+3])
				}
			}
		default:
			return decodeErr("unknown mesh field %d", num)
		}
		return nil
	})
	if err != nil {
		return Mesh{}, err
	}
	if !haveVerts || !haveFaces {
		return Mesh{}, decodeErr("mesh is missing vertices or faces")
	}
	return mesh, nil
}

func appendShape(b []byte, rows, cols int) []byte {
	var dims []byte
	dims = protowire.AppendVarint(dims, uint64(rows))
	dims = protowire.AppendVarint(dims, uint64(cols))
	b = protowire.AppendTag(b, fieldArrayShape, protowire.BytesType)
	return protowire.AppendBytes(b, dims)
}

// decodeArray returns the row count and the packed element bytes of a
// two-dimensional array whose second dimension must be 3.
func decodeArray(body []byte) (uint64, []byte, error) {
	var shape []uint64
	var data []byte
	var haveShape, haveData bool
	err := fields(body, func(num protowire.Number, value []byte) error {
		switch num {
		case fieldArrayShape:
			haveShape = true
			for len(value) > 0 {
				dim, n := protowire.ConsumeVarint(value)
				if n < 0 {
					return decodeErr("array shape: %v", protowire.ParseError(n))
				}
				shape = append(shape, dim)
				value = value[n:]
			}
		case fieldArrayData:
			haveData = true
			data = value
		default:
			return decodeErr("unknown array field %d", num)
		}
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	if !haveShape || !haveData {
		return 0, nil, decodeErr("array is missing shape or data")
	}
	if len(shape) != 2 {
		return 0, nil, decodeErr("array has %d dimensions, want 2", len(shape))
	}
	if shape[1] != 3 {
		return 0, nil, decodeErr("array has %d columns, want 3", shape[1])
	}
	if shape[0] > uint64(len(data)) {
		return 0, nil, decodeErr("array declares %d rows in %d bytes", shape[0], len(data))
	}
	return shape[0], data, nil
}

func appendFloats(b []byte, values []float32) []byte {
	for _, f := range values {
		b = protowire.AppendFixed32(b, math.Float32bits(f))
	}
	return b
}

func consumeFloats(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, decodeErr("packed float data has %d bytes, not a multiple of 4", len(b))
	}
	out := make([]float32, 0, len(b)/4)
	for len(b) > 0 {
		bits, n := protowire.ConsumeFixed32(b)
		if n < 0 {
			return nil, decodeErr("packed float: %v", protowire.ParseError(n))
		}
		out = append(out, math.Float32frombits(bits))
		b = b[n:]
	}
	return out, nil
}

func consumeInts(b []byte) ([]int32, error) {
	var out []int32
	for len(b) > 0 {
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, decodeErr("packed index: %v", protowire.ParseError(n))
		}
		i := protowire.DecodeZigZag(v)
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, decodeErr("index %d overflows int32", i)
		}
		out = append(out, int32(i))
		b = b[n:]
	}
	return out, nil
}
