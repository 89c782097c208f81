// Package login runs the browser side of the interactive owner login from a
// terminal: a one-shot local callback server, a browser opener and a Flow
// that ties them together and checks the returned state.
//
//	flow, err := login.Start(ctx, "127.0.0.1:8085")
//	if err != nil {
//	    return err
//	}
//	defer flow.Stop()
//
//	state := uuid.NewString()
//	authURL := login.AuthCodeURL(endpoint, clientID, flow.RedirectURI(), scopes, state)
//	code, redirectURI, err := flow.Authorize(ctx, authURL, state)
//
// Flow satisfies session.Authorizer.
package login
