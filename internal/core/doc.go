// Package core provides the business logic for QR participant tracking.
//
// The package holds all domain rules and no transport code. Web handlers, the
// qrtrackctl CLI, and tests drive it through [Service], which wires the
// components below to a single [Store].
//
// # Components
//
//   - [WizardService]: the 8-step setup wizard, one session per coordinator.
//     Each step owns one payload slot that is replaced whole on save.
//   - [DatasetBuilder]: turns steps 2 to 4 into a dataset schema and imports
//     the uploaded participants, reporting skipped rows instead of failing.
//   - [RecordService]: add, update, delete, page, and search participants.
//   - [ScanRecorder]: resolves a scanned email or phone to a participant and
//     records attendance exactly once per class.
//   - [Exporter]: writes a dataset as CSV in schema order.
//
// # Finalize Flow
//
//  1. Coordinator saves steps 2 (program), 3 (fields), and 4 (upload)
//  2. [WizardService.Finalize] checks that no scheduled class id is taken
//  3. [DatasetBuilder.Build] creates the dataset and imports rows in batches
//  4. One [CheckInSession] is created per scheduled class
//  5. The dataset id is linked to the wizard session; finalizing again
//     requires a reset
//
// # Error Handling
//
// Errors fall into a small taxonomy: [ValidationError] for bad input,
// [NotFoundError] for missing entities, [ErrUnknownSession] for bad class
// ids, and [StoreError] for persistence failures, which are returned
// unmodified and never retried. Repeated check-ins are not errors; they
// succeed with AlreadyCheckedIn set.
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - DB001-DB007: Database errors
//   - VAL001-VAL008: Validation errors
//   - WIZ001-WIZ005: Wizard errors
//   - CHK001-CHK003: Check-in errors
//   - FILE001-FILE005: Upload file errors
//   - IMP001-IMP003: Import capacity and cancellation
//
// # Audit Logging
//
// Every mutation is recorded through [Auditor] with a severity:
//
//   - Low: check-ins, class creation
//   - Medium: record adds and edits, wizard completion
//   - High: record deletions, wizard resets
//   - Critical: dataset creation, finalize, record recounts
package core
