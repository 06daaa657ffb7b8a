package moray

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the gRPC service name of the record store
	ServiceName = "moray.RecordStore"

	findObjectsMethod = "/" + ServiceName + "/FindObjects"
)

// ObjectRecord is one object delivered by FindObjects.
type ObjectRecord struct {
	Bucket string
	Key    string
	Value  map[string]interface{}
}

// RecordStoreServer is the server side of the record store service.
// FindObjects calls send once per matching object, in store order.
type RecordStoreServer interface {
	FindObjects(ctx context.Context, bucket, filter string, send func(ObjectRecord) error) error
}

// RegisterRecordStoreServer registers srv on s.
func RegisterRecordStoreServer(s grpc.ServiceRegistrar, srv RecordStoreServer) {
	s.RegisterService(&serviceDesc, srv)
}

var findObjectsDesc = grpc.StreamDesc{
	StreamName:    "FindObjects",
	Handler:       findObjectsHandler,
	ServerStreams: true,
}

// Requests and responses are google.protobuf.Struct messages, so the
// service needs no generated code:
//
//	request:  {"bucket": "imgapi_images", "filter": "uuid=*"}
//	response: {"bucket": "imgapi_images", "key": "<uuid>", "value": "<JSON object>"}
//
// The object travels as JSON text because Struct numbers are doubles and
// would round integers above 2^53.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecordStoreServer)(nil),
	Streams:     []grpc.StreamDesc{findObjectsDesc},
	Metadata:    "moray/recordstore.proto",
}

func findObjectsHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	fields := req.GetFields()
	bucket := fields["bucket"].GetStringValue()
	filter := fields["filter"].GetStringValue()

	return srv.(RecordStoreServer).FindObjects(stream.Context(), bucket, filter, func(obj ObjectRecord) error {
		msg, err := obj.toStruct()
		if err != nil {
			return err
		}
		return stream.SendMsg(msg)
	})
}

func newFindObjectsRequest(bucket, filter string) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]interface{}{
		"bucket": bucket,
		"filter": filter,
	})
}

func (o ObjectRecord) toStruct() (*structpb.Struct, error) {
	value, err := json.Marshal(o.Value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode object %s: %w", o.Key, err)
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"bucket": structpb.NewStringValue(o.Bucket),
		"key":    structpb.NewStringValue(o.Key),
		"value":  structpb.NewStringValue(string(value)),
	}}, nil
}

func objectFromStruct(msg *structpb.Struct) (ObjectRecord, error) {
	fields := msg.GetFields()
	key := fields["key"].GetStringValue()
	text, ok := fields["value"].GetKind().(*structpb.Value_StringValue)
	if !ok {
		return ObjectRecord{}, fmt.Errorf("object %q has no value", key)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(text.StringValue)))
	dec.UseNumber()
	var value map[string]interface{}
	if err := dec.Decode(&value); err != nil {
		return ObjectRecord{}, fmt.Errorf("object %q: invalid value: %w", key, err)
	}
	if value == nil {
		return ObjectRecord{}, fmt.Errorf("object %q has no value", key)
	}
	return ObjectRecord{
		Bucket: fields["bucket"].GetStringValue(),
		Key:    key,
		Value:  value,
	}, nil
}
