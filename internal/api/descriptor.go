package api

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// FilePath names the service's proto file in the global registry.
const FilePath = "monitor/v1/monitor.proto"

// File describes monitor.v1. It is registered with protoregistry.GlobalFiles,
// so server reflection can serve it to tools such as grpcurl.
var File = registerFile()

func registerFile() protoreflect.FileDescriptor {
	fd, err := protodesc.NewFile(fileProto(), protoregistry.GlobalFiles)
	if err != nil {
		panic(fmt.Sprintf("api: build %s: %v", FilePath, err))
	}
	if err := protoregistry.GlobalFiles.RegisterFile(fd); err != nil {
		panic(fmt.Sprintf("api: register %s: %v", FilePath, err))
	}
	return fd
}

var (
	typeString = descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum()
	typeBytes  = descriptorpb.FieldDescriptorProto_TYPE_BYTES.Enum()
	typeDouble = descriptorpb.FieldDescriptorProto_TYPE_DOUBLE.Enum()
	typeInt64  = descriptorpb.FieldDescriptorProto_TYPE_INT64.Enum()
)

const (
	emptyType     = ".google.protobuf.Empty"
	timestampType = ".google.protobuf.Timestamp"
)

// fileProto is the descriptor protoc would emit for:
//
//	syntax = "proto2";
//	package monitor.v1;
//
//	service Monitor {
//	  rpc Info(google.protobuf.Empty) returns (InfoResponse);
//	  rpc Ping(google.protobuf.Empty) returns (PingResponse);
//	  rpc GetRecord(google.protobuf.Empty) returns (RecordResponse);
//	  rpc ReportLatency(LatencyRequest) returns (RecordResponse);
//	  rpc ReportInterface(InterfaceRequest) returns (RecordResponse);
//	  rpc ReportCPU(CPURequest) returns (RecordResponse);
//	  rpc ReportMemory(MemoryRequest) returns (RecordResponse);
//	  rpc ReportMountingPoint(MountingPointRequest) returns (RecordResponse);
//	}
//
// Every field is optional so an unset value stays distinct from zero.
func fileProto() *descriptorpb.FileDescriptorProto {
	return &descriptorpb.FileDescriptorProto{
		Name:    proto.String(FilePath),
		Package: proto.String(string(packageName)),
		Syntax:  proto.String("proto2"),
		Dependency: []string{
			emptypb.File_google_protobuf_empty_proto.Path(),
			timestamppb.File_google_protobuf_timestamp_proto.Path(),
		},
		MessageType: []*descriptorpb.DescriptorProto{
			messageProto("InfoResponse",
				scalar("application", 1, typeString),
				scalar("version", 2, typeString)),
			messageProto("PingResponse",
				nested("server_time", 1, timestampType)),
			messageProto("RecordResponse",
				scalar("status", 1, typeString),
				scalar("record", 2, typeBytes)),
			messageProto("LatencyRequest",
				scalar("latency", 1, typeDouble)),
			messageProto("InterfaceRequest",
				scalar("name", 1, typeString),
				scalar("mac", 2, typeString),
				scalar("ipv4", 3, typeString),
				scalar("ipv6", 4, typeString)),
			messageProto("CPURequest",
				scalar("threads", 1, typeInt64),
				scalar("cores", 2, typeInt64),
				scalar("model", 3, typeString),
				scalar("load", 4, typeDouble)),
			messageProto("SwapMessage",
				scalar("available", 1, typeInt64),
				scalar("used", 2, typeInt64)),
			messageProto("MemoryRequest",
				scalar("available", 1, typeInt64),
				scalar("used", 2, typeInt64),
				nested("swap", 3, "."+string(packageName)+".SwapMessage")),
			messageProto("MountingPointRequest",
				scalar("path", 1, typeString),
				scalar("available", 2, typeInt64),
				scalar("used", 3, typeInt64)),
		},
		Service: []*descriptorpb.ServiceDescriptorProto{{
			Name: proto.String(serviceShortName),
			Method: []*descriptorpb.MethodDescriptorProto{
				methodProto("Info", emptyType, "InfoResponse"),
				methodProto("Ping", emptyType, "PingResponse"),
				methodProto("GetRecord", emptyType, "RecordResponse"),
				methodProto("ReportLatency", "LatencyRequest", "RecordResponse"),
				methodProto("ReportInterface", "InterfaceRequest", "RecordResponse"),
				methodProto("ReportCPU", "CPURequest", "RecordResponse"),
				methodProto("ReportMemory", "MemoryRequest", "RecordResponse"),
				methodProto("ReportMountingPoint", "MountingPointRequest", "RecordResponse"),
			},
		}},
	}
}

func messageProto(name string, fields ...*descriptorpb.FieldDescriptorProto) *descriptorpb.DescriptorProto {
	return &descriptorpb.DescriptorProto{Name: proto.String(name), Field: fields}
}

func scalar(name string, num int32, typ *descriptorpb.FieldDescriptorProto_Type) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:   proto.String(name),
		Number: proto.Int32(num),
		Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:   typ,
	}
}

func nested(name string, num int32, typeName string) *descriptorpb.FieldDescriptorProto {
	f := scalar(name, num, descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum())
	f.TypeName = proto.String(typeName)
	return f
}

// methodProto qualifies bare message names with the package.
func methodProto(name, in, out string) *descriptorpb.MethodDescriptorProto {
	qualify := func(s string) string {
		if s[0] == '.' {
			return s
		}
		return "." + string(packageName) + "." + s
	}
	return &descriptorpb.MethodDescriptorProto{
		Name:       proto.String(name),
		InputType:  proto.String(qualify(in)),
		OutputType: proto.String(qualify(out)),
	}
}
