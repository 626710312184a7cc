package services

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/zalando/go-keyring"
)

const keyringServiceName = "appdeck"

// CredentialService stores git push tokens in the OS keyring, keyed by the
// remote host. Revert falls back to it when the caller supplies no token.
type CredentialService struct{}

func NewCredentialService() *CredentialService {
	return &CredentialService{}
}

func (s *CredentialService) StoreToken(host, token string) error {
	if host == "" {
		return errors.New("host is required")
	}
	if token == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(keyringServiceName, host, token)
}

func (s *CredentialService) Token(host string) (string, error) {
	if host == "" {
		return "", errors.New("host is required")
	}
	return keyring.Get(keyringServiceName, host)
}

func (s *CredentialService) DeleteToken(host string) error {
	if host == "" {
		return errors.New("host is required")
	}
	return keyring.Delete(keyringServiceName, host)
}

// TokenForRepo resolves the stored token for the repo's origin remote.
func (s *CredentialService) TokenForRepo(repo *git.Repository) (string, error) {
	remote, err := repo.Remote("origin")
	if err != nil {
		return "", fmt.Errorf("no origin remote: %w", err)
	}
	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", errors.New("origin remote has no URL")
	}
	host := remoteHost(urls[0])
	if host == "" {
		return "", fmt.Errorf("cannot derive host from remote %q", urls[0])
	}
	return s.Token(host)
}

// remoteHost extracts the host from http(s) and scp-like git URLs. Local
// filesystem remotes have no host and need no credentials.
func remoteHost(remoteURL string) string {
	if u, err := url.Parse(remoteURL); err == nil && u.Host != "" {
		return u.Hostname()
	}
	// scp-like: git@github.com:org/repo.git
	if at := strings.Index(remoteURL, "@"); at >= 0 {
		rest := remoteURL[at+1:]
		if colon := strings.Index(rest, ":"); colon > 0 {
			return rest[:colon]
		}
	}
	return ""
}
