/*
DESCRIPTION
  storage.go provides persistence of OAuth2 tokens in either a local file or
  a Google Storage bucket object.

LICENSE
  Copyright (C) 2026 the Australian Ocean Lab (AusOcean)

  This is free software: you can redistribute it and/or modify it
  under the terms of the GNU General Public License as published by
  the Free Software Foundation, either version 3 of the License, or
  (at your option) any later version.

  It is distributed in the hope that it will be useful,
  but WITHOUT ANY WARRANTY; without even the implied warranty of
  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
  GNU General Public License for more details.

  You should have received a copy of the GNU General Public License
  in gpl.txt. If not, see http://www.gnu.org/licenses/.
*/

package gauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"golang.org/x/oauth2"
)

// ErrNoToken is returned when no token has been stored or exchanged yet.
var ErrNoToken = errors.New("no token available")

// TokenStore loads and saves a single OAuth2 token.
type TokenStore interface {
	// Load returns the stored token, or ErrNoToken if there is none.
	Load(ctx context.Context) (*oauth2.Token, error)

	// Save replaces the stored token.
	Save(ctx context.Context, tok *oauth2.Token) error
}

// NewTokenStore returns a TokenStore for uri. A gs://<bucket>/<object> URI
// selects a bucket object; anything else is treated as a file path.
func NewTokenStore(uri string) (TokenStore, error) {
	if !strings.HasPrefix(uri, gsbScheme) {
		return &FileStore{Name: uri}, nil
	}
	bkt, obj, err := googleStorageAddr(uri)
	if err != nil {
		return nil, fmt.Errorf("could not parse uri: %w", err)
	}
	return &BucketStore{Bucket: bkt, Object: obj}, nil
}

// FileStore keeps a token as JSON in a local file.
type FileStore struct {
	Name string
}

// Load implements TokenStore.
func (s *FileStore) Load(ctx context.Context) (*oauth2.Token, error) {
	f, err := os.Open(s.Name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("could not read token file named: %s: %w", s.Name, err)
	}
	defer f.Close()
	return decodeToken(f)
}

// Save implements TokenStore.
func (s *FileStore) Save(ctx context.Context, tok *oauth2.Token) error {
	err := os.MkdirAll(filepath.Dir(s.Name), 0o700)
	if err != nil {
		return fmt.Errorf("could not create token directory: %w", err)
	}
	f, err := os.OpenFile(s.Name, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("could not open token file: %w", err)
	}
	err = json.NewEncoder(f).Encode(tok)
	if err != nil {
		f.Close()
		return fmt.Errorf("could not encode token to file: %w", err)
	}
	return f.Close()
}

// BucketStore keeps a token as JSON in a Google Storage bucket object.
type BucketStore struct {
	Bucket string
	Object string
}

func (s *BucketStore) object(ctx context.Context) (*storage.ObjectHandle, func() error, error) {
	c, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create storage client: %w", err)
	}
	return c.Bucket(s.Bucket).Object(s.Object), c.Close, nil
}

// Load implements TokenStore.
func (s *BucketStore) Load(ctx context.Context) (*oauth2.Token, error) {
	obj, done, err := s.object(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	r, err := obj.NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNoToken
	}
	if err != nil {
		return nil, fmt.Errorf("could not get reader for object: %w", err)
	}
	defer r.Close()
	return decodeToken(r)
}

// Save implements TokenStore. Any existing object is overwritten.
func (s *BucketStore) Save(ctx context.Context, tok *oauth2.Token) error {
	obj, done, err := s.object(ctx)
	if err != nil {
		return err
	}
	defer done()

	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"
	err = json.NewEncoder(w).Encode(tok)
	if err != nil {
		w.Close()
		return fmt.Errorf("could not encode token to object: %w", err)
	}
	err = w.Close()
	if err != nil {
		return fmt.Errorf("could not close written object: %w", err)
	}
	return nil
}

func decodeToken(r io.Reader) (*oauth2.Token, error) {
	var tok oauth2.Token
	err := json.NewDecoder(r).Decode(&tok)
	if err != nil {
		return nil, fmt.Errorf("could not decode token: %w", err)
	}
	return &tok, nil
}

// googleStorageAddr splits a gs://<bucket>/<object> address.
func googleStorageAddr(addr string) (bucket, object string, err error) {
	u, err := url.Parse(addr)
	if err != nil {
		return "", "", err
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("url does not have gs scheme: %s", u)
	}
	object = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || object == "" {
		return "", "", fmt.Errorf("url does not name a bucket object: %s", u)
	}
	return u.Host, object, nil
}
