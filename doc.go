// Package onboard implements identity, credential, and instructor
// onboarding lifecycle management for the platform.
//
// The package is organized around a small set of collaborators:
//
//   - Password hashing and verification (bcrypt) in password.go.
//   - TokenService issues signed, time-bounded session tokens.
//   - Users and Applications repositories persist identity and
//     instructor application records via Bun, each with a unique
//     email index that is the authoritative uniqueness guard.
//   - Command handlers (command_*.go) orchestrate the flows: submit,
//     approve, reject, register, login, forgot and change password.
//   - Mailer is a best-effort notification sink. Delivery failures
//     are logged and swallowed everywhere except the forgot-password
//     flow, where the delivery is the whole point of the operation.
//
// Application records move through a strict lifecycle:
//
//	pending -> approved | rejected
//
// Both outcomes are terminal. The status update is a compare-and-set
// at the storage layer, so two concurrent reviews of the same
// application cannot both succeed.
package onboard
