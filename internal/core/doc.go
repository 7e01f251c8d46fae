// Package core provides the business logic for CSV import sessions.
//
// This package sits between the pure parsing packages (charset, csvparse,
// mapping) and any transport. It can be used by web handlers, CLI tools, or
// tests without modification.
//
// # Architecture
//
// The package is organized around several key concepts:
//
//   - Targets: named sets of field definitions, registered at init time or
//     loaded from YAML via [LoadTargetsFile].
//   - Service: the entry point for session operations (open, re-decode,
//     re-parse, map, export records).
//   - Templates: saved mappings reapplied to files with similar headers,
//     persisted through a [TemplateStore].
//
// # Session Pipeline
//
// Each session holds the raw bytes of one file. The pipeline is:
//
//  1. [charset.Sniff] picks the encoding from the BOM or a UTF-8 scan
//  2. [charset.Decode] converts the bytes to text
//  3. [csvparse.DetectDelimiter] picks the delimiter from the first lines
//  4. [csvparse.Parse] produces headers, rows and row-level errors
//  5. [mapping.AutoMatch] fills field mappings, keeping user choices
//
// [Service.SetEncoding] re-enters the pipeline at step 2,
// [Service.SetOptions] at step 3 or 4. Mapping entries whose header still
// exists survive both.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE003: File errors (size, empty, missing)
//   - ENC001: Unsupported encoding
//   - PARSE001: Unusable parse options
//   - MAP001-MAP004: Mapping errors
//   - SES001-SES004: Session errors (expired, busy, cancelled, timeout)
//   - TPL001-TPL003: Template errors
package core
