package control

// UserVerifier is the credential verification collaborator. valid reports
// whether user authenticated with token; ok reports whether the
// verification service itself could be reached (a false ok represents an
// internal failure of the verifier, distinct from a rejected credential);
// msg is a human-readable explanation used verbatim as the operation's
// result message on failure.
type UserVerifier interface {
	VerifyUser(user, token string) (valid bool, ok bool, msg string)
}

// UserVerifierFunc adapts a function to the UserVerifier interface.
type UserVerifierFunc func(user, token string) (bool, bool, string)

func (f UserVerifierFunc) VerifyUser(user, token string) (bool, bool, string) {
	return f(user, token)
}

// AllowAllVerifier accepts every user/token pair. It stands in for the
// external credential service in tests and in deployments that delegate
// authentication elsewhere (e.g. to the HTTP layer in front of this core).
var AllowAllVerifier UserVerifier = UserVerifierFunc(func(user, token string) (bool, bool, string) {
	return true, true, ""
})

// TokenMapVerifier authenticates against a fixed table of user->token,
// useful for local testing and small single-tenant deployments.
type TokenMapVerifier struct {
	Tokens map[string]string
}

func (v TokenMapVerifier) VerifyUser(user, token string) (bool, bool, string) {
	want, known := v.Tokens[user]
	if !known {
		return false, true, "unknown user: " + user
	}
	if want != token {
		return false, true, "invalid token for user: " + user
	}
	return true, true, ""
}
