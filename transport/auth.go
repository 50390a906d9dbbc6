// Copyright 2021 The httpflex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package transport

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// An Authenticator adds credentials to an outgoing request. The session
// calls it once per attempt, on a clone of the request.
//
// Implementations must be safe for concurrent use by multiple
// goroutines.
type Authenticator interface {
	Authenticate(req *http.Request) error
}

// AuthFunc is a function implementing the Authenticator interface.
type AuthFunc func(req *http.Request) error

// Authenticate calls f(req).
func (f AuthFunc) Authenticate(req *http.Request) error {
	return f(req)
}

// Basic authenticates requests with HTTP basic authentication.
func Basic(user, password string) Authenticator {
	return AuthFunc(func(req *http.Request) error {
		req.SetBasicAuth(user, password)
		return nil
	})
}

// Bearer authenticates requests with a static bearer token.
func Bearer(token string) Authenticator {
	return AuthFunc(func(req *http.Request) error {
		req.Header.Set("Authorization", "Bearer "+token)
		return nil
	})
}

// OAuth2 authenticates requests with tokens obtained from ts.
func OAuth2(ts oauth2.TokenSource) Authenticator {
	ts = oauth2.ReuseTokenSource(nil, ts)
	return AuthFunc(func(req *http.Request) error {
		token, err := ts.Token()
		if err != nil {
			return fmt.Errorf("oauth2 token: %w", err)
		}
		token.SetAuthHeader(req)
		return nil
	})
}

// ClientCredentials authenticates requests with tokens obtained by the
// OAuth2 client credentials flow.
func ClientCredentials(clientID, clientSecret, tokenURL string, scopes ...string) Authenticator {
	c := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       scopes,
	}
	return OAuth2(c.TokenSource(context.Background()))
}

// JWT authenticates requests with a bearer token signed with HS256. A
// fresh token valid for ttl is minted for each attempt.
func JWT(secret []byte, issuer, subject string, ttl time.Duration) Authenticator {
	return AuthFunc(func(req *http.Request) error {
		now := time.Now()
		claims := jwt.RegisteredClaims{
			Issuer:   issuer,
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		}
		if ttl > 0 {
			claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
		}
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
		if err != nil {
			return fmt.Errorf("jwt: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+signed)
		return nil
	})
}

// SigV4 signs requests with AWS Signature Version 4.
func SigV4(creds aws.CredentialsProvider, service, region string) Authenticator {
	signer := v4.NewSigner()
	return AuthFunc(func(req *http.Request) error {
		if creds == nil {
			return errors.New("sigv4: nil credentials provider")
		}
		c, err := creds.Retrieve(req.Context())
		if err != nil {
			return fmt.Errorf("sigv4 credentials: %w", err)
		}
		hash, err := payloadHash(req)
		if err != nil {
			return err
		}
		req.Header.Set("X-Amz-Content-Sha256", hash)
		return signer.SignHTTP(req.Context(), c, req, hash, service, region, time.Now())
	})
}

// payloadHash hashes the request body, replacing it with an unread copy.
func payloadHash(req *http.Request) (string, error) {
	if req.Body == nil || req.Body == http.NoBody {
		sum := sha256.Sum256(nil)
		return hex.EncodeToString(sum[:]), nil
	}
	b, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return "", err
	}
	req.Body = io.NopCloser(bytes.NewReader(b))
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// AuthConfig describes an Authenticator in a client configuration.
type AuthConfig struct {
	// Type is one of "basic", "bearer", "oauth2", "jwt" or "sigv4".
	Type         string        `yaml:"type" json:"type"`
	Username     string        `yaml:"username" json:"username"`
	Password     string        `yaml:"password" json:"password"`
	Token        string        `yaml:"token" json:"token"`
	ClientID     string        `yaml:"client_id" json:"client_id"`
	ClientSecret string        `yaml:"client_secret" json:"client_secret"`
	TokenURL     string        `yaml:"token_url" json:"token_url"`
	Scopes       []string      `yaml:"scopes" json:"scopes"`
	Secret       string        `yaml:"secret" json:"secret"`
	Issuer       string        `yaml:"issuer" json:"issuer"`
	Subject      string        `yaml:"subject" json:"subject"`
	TTL          time.Duration `yaml:"ttl" json:"ttl"`
	AccessKey    string        `yaml:"access_key" json:"access_key"`
	SecretKey    string        `yaml:"secret_key" json:"secret_key"`
	SessionToken string        `yaml:"session_token" json:"session_token"`
	Service      string        `yaml:"service" json:"service"`
	Region       string        `yaml:"region" json:"region"`
}

// FromAuthConfig builds the Authenticator described by c. A nil c, or
// one with an empty Type, yields a nil Authenticator.
func FromAuthConfig(c *AuthConfig) (Authenticator, error) {
	if c == nil || c.Type == "" {
		return nil, nil
	}
	switch c.Type {
	case "basic":
		return Basic(c.Username, c.Password), nil
	case "bearer":
		if c.Token == "" {
			return nil, errors.New("bearer auth requires a token")
		}
		return Bearer(c.Token), nil
	case "oauth2":
		if c.TokenURL == "" {
			return nil, errors.New("oauth2 auth requires a token_url")
		}
		return ClientCredentials(c.ClientID, c.ClientSecret, c.TokenURL, c.Scopes...), nil
	case "jwt":
		if c.Secret == "" {
			return nil, errors.New("jwt auth requires a secret")
		}
		return JWT([]byte(c.Secret), c.Issuer, c.Subject, c.TTL), nil
	case "sigv4":
		if c.Service == "" || c.Region == "" {
			return nil, errors.New("sigv4 auth requires a service and a region")
		}
		creds := aws.CredentialsProviderFunc(func(context.Context) (aws.Credentials, error) {
			return aws.Credentials{
				AccessKeyID:     c.AccessKey,
				SecretAccessKey: c.SecretKey,
				SessionToken:    c.SessionToken,
				Source:          "httpflex",
			}, nil
		})
		return SigV4(creds, c.Service, c.Region), nil
	default:
		return nil, fmt.Errorf("unknown auth type %q", c.Type)
	}
}

type authTransport struct {
	next http.RoundTripper
	auth Authenticator
}

func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	if err := t.auth.Authenticate(r); err != nil {
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, err
	}
	return t.next.RoundTrip(r)
}

func (t *authTransport) CloseIdleConnections() {
	closeIdle(t.next)
}
