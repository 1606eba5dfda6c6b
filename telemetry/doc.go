// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package telemetry builds the OpenTelemetry providers for traces,
// metrics and logs and installs them globally for the lifetime of a
// [evhttp.Runtime].
//
// Exporters are picked per deployment:
//
//   - [BuildNoopExporters] drops everything.
//   - [BuildStdoutExporters] pretty prints to a writer.
//   - [BuildOTLPGrpcExporters] pushes to a collector over gRPC.
//   - [BuildOTLPHttpExporters] pushes to a collector over HTTP using a
//     client from [httpclient].
package telemetry
