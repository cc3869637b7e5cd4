package vimeo

import (
	"errors"

	"github.com/dghubble/oauth1"
)

// Credentials are the OAuth 1.0a consumer and access token pairs used to sign every request.
type Credentials struct {
	ConsumerKey       string
	ConsumerSecret    string
	AccessToken       string
	AccessTokenSecret string
}

// Validate returns an error listing the missing credential parts.
func (c Credentials) Validate() error {
	var errs []error
	if c.ConsumerKey == "" {
		errs = append(errs, errors.New("consumer key is empty"))
	}
	if c.ConsumerSecret == "" {
		errs = append(errs, errors.New("consumer secret is empty"))
	}
	if c.AccessToken == "" {
		errs = append(errs, errors.New("access token is empty"))
	}
	if c.AccessTokenSecret == "" {
		errs = append(errs, errors.New("access token secret is empty"))
	}
	return errors.Join(errs...)
}

func (c Credentials) oauthConfig() *oauth1.Config {
	return oauth1.NewConfig(c.ConsumerKey, c.ConsumerSecret)
}

func (c Credentials) token() *oauth1.Token {
	return oauth1.NewToken(c.AccessToken, c.AccessTokenSecret)
}
