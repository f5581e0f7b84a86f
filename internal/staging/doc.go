// Package staging materializes the disposable build project a render run
// compiles from: a uniquely named directory containing a generated entry
// module that imports the user's source file and registers it under the
// descriptor's composition ID. Projects are released unconditionally when the
// run terminates; release is idempotent and never fails the run.
package staging
