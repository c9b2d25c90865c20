// Package identityv1 holds the generated identity.v1 protobuf messages and gRPC stubs.
package identityv1

//go:generate protoc -I ../../../../api/proto --go_out=../../../.. --go_opt=module=github.com/dtroode/identity-server --go-grpc_out=../../../.. --go-grpc_opt=module=github.com/dtroode/identity-server identity/v1/identity.proto
