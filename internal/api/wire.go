package api

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// wireMessage is a Go message with a counterpart in File. fill copies it onto
// a dynamic message of that type and load copies it back.
type wireMessage interface {
	protoName() protoreflect.Name
	fill(protoreflect.Message)
	load(protoreflect.Message)
}

// Descriptor returns the descriptor of one of the service's own messages.
func Descriptor(name protoreflect.Name) protoreflect.MessageDescriptor {
	md := File.Messages().ByName(name)
	if md == nil {
		panic(fmt.Sprintf("api: no message %s in %s", name, FilePath))
	}
	return md
}

// toWire returns the protobuf form of v. Generated messages pass through.
func toWire(v any) (proto.Message, error) {
	switch v := v.(type) {
	case proto.Message:
		return v, nil
	case wireMessage:
		m := dynamicpb.NewMessage(Descriptor(v.protoName()))
		v.fill(m)
		return m, nil
	default:
		return nil, fmt.Errorf("api: %T has no protobuf form", v)
	}
}

// newWire returns an empty protobuf message to decode T from, and a func that
// copies the decoded value into a fresh *T.
func newWire[T any]() (proto.Message, func() *T) {
	out := new(T)
	switch v := any(out).(type) {
	case proto.Message:
		return v, func() *T { return out }
	case wireMessage:
		m := dynamicpb.NewMessage(Descriptor(v.protoName()))
		return m, func() *T {
			v.load(m)
			return out
		}
	default:
		panic(fmt.Sprintf("api: %T has no protobuf form", out))
	}
}

func fieldOf(m protoreflect.Message, name protoreflect.Name) protoreflect.FieldDescriptor {
	fd := m.Descriptor().Fields().ByName(name)
	if fd == nil {
		panic(fmt.Sprintf("api: %s has no field %s", m.Descriptor().FullName(), name))
	}
	return fd
}

// setOpt sets the field when v is non-nil and leaves it absent otherwise.
func setOpt[T any](m protoreflect.Message, name protoreflect.Name, v *T, value func(T) protoreflect.Value) {
	if v != nil {
		m.Set(fieldOf(m, name), value(*v))
	}
}

// getOpt is nil for an absent field, so an unset value stays distinct from zero.
func getOpt[T any](m protoreflect.Message, name protoreflect.Name, get func(protoreflect.Value) T) *T {
	fd := fieldOf(m, name)
	if !m.Has(fd) {
		return nil
	}
	v := get(m.Get(fd))
	return &v
}

func getString(m protoreflect.Message, name protoreflect.Name) string {
	return m.Get(fieldOf(m, name)).String()
}

func getInt(m protoreflect.Message, name protoreflect.Name) int64 {
	return m.Get(fieldOf(m, name)).Int()
}

func valueOfInt(v int) protoreflect.Value { return protoreflect.ValueOfInt64(int64(v)) }

func intOf(v protoreflect.Value) int { return int(v.Int()) }
