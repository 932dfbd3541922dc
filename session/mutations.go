package session

import (
	"encoding/json"
	"errors"

	"github.com/devilmonastery/frankenergie/auth"
	"github.com/devilmonastery/frankenergie/graphql"
)

const loginMutation = `
	mutation Login($email: String!, $password: String!) {
		login(email: $email, password: $password) {
			authToken
			refreshToken
		}
	}
`

const renewTokenMutation = `
	mutation RenewToken($authToken: String!, $refreshToken: String!) {
		renewToken(authToken: $authToken, refreshToken: $refreshToken) {
			authToken
			refreshToken
		}
	}
`

var errUnexpectedResponse = errors.New("unexpected response")

// tokenPair is the payload of both the login and renewToken mutations
type tokenPair struct {
	AuthToken    string `json:"authToken"`
	RefreshToken string `json:"refreshToken"`
}

func loginRequest(email, password string) graphql.Request {
	return graphql.Request{
		Query:         loginMutation,
		OperationName: "Login",
		Variables:     map[string]any{"email": email, "password": password},
	}
}

func renewRequest(token *auth.Token) graphql.Request {
	return graphql.Request{
		Query:         renewTokenMutation,
		OperationName: "RenewToken",
		Variables: map[string]any{
			"authToken":    token.AccessToken,
			"refreshToken": token.RefreshToken,
		},
	}
}

// decodeTokenPair extracts data.<field> from a mutation response
func decodeTokenPair(resp *graphql.Response, field string) (*tokenPair, error) {
	if !resp.HasData() {
		return nil, errUnexpectedResponse
	}

	var data map[string]*tokenPair
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, errUnexpectedResponse
	}

	pair := data[field]
	if pair == nil || pair.AuthToken == "" {
		return nil, errUnexpectedResponse
	}
	return pair, nil
}
