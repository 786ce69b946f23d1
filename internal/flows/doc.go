// Package flows contains the orchestration behind every Engine operation.
//
// Each Run function (RunLogin, RunConfirmLogin, RunStartRegistration,
// RunConfirmRegistration) takes a typed dependency struct of function fields
// and holds no state between calls. The Engine builds the structs once and
// owns every resource they reach.
//
// # Architecture boundaries
//
// Flows call the identifier resolver, the OTP engine, the identity provider
// and the profile store only through their Deps. They report outcomes
// through Hooks and never import the root package.
package flows
