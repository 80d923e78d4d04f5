// Package core provides the business logic for importing karting session exports.
//
// The package is independent of any storage or transport. It sees the outside
// world through two interfaces: [ReferenceStore] for name lookups and
// [SessionStore] for batched appends. The CLI, the HTTP server and the tests
// all drive the same [Importer].
//
// # Pipeline
//
// One call to [Importer.Run] executes these stages over a [RunContext]:
//
//  1. [Parse] splits the export into [RawRow] values (header on line one)
//  2. Each row's Circuit, Tyres and Engine are resolved by [Resolver]
//  3. [Converter] builds a [CanonicalSession] with lenient coercion;
//     dates go through [DateNormalizer]
//  4. [Committer] writes the ready sessions in batches of at most
//     [MaxBatchSize], one batch at a time
//  5. [Summarize] aggregates the outcomes into a [RunSummary]
//
// Rows are resolved sequentially by default. With Options.Workers > 1 a
// bounded pool resolves rows concurrently; outcomes are stored by row index,
// so skip attribution and upload order do not depend on completion order.
//
// # Error Handling
//
// Row-scoped errors ([MissingNameError], [NotFoundError], [AmbiguousError],
// [LookupError]) become [SkipRecord] values and the run continues.
// [SetupError] stops the run before any row is processed. [BatchCommitError]
// stops the run mid-commit; batches committed before it remain persisted.
// [MapError] assigns support codes to all of them.
//
// Importing the same export twice stores every session twice. Rows carry no
// natural key and no de-duplication is attempted.
package core
