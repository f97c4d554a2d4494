/*
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

// Package gauth provides Google OAuth2 authorisation, token persistence and
// secrets loading.
package gauth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"cloud.google.com/go/storage"

	"github.com/ausocean/utils/filemap"
)

// The URL scheme that represents a Google Storage Bucket.
const gsbScheme = "gs://"

// ErrNoSecrets is returned when the secrets environment variable is unset.
var ErrNoSecrets = errors.New("secrets environment variable not defined")

// GetSecrets looks up secrets from either a file or Google Storage
// bucket specified by the <PROJECTID>_SECRETS environment variable.
// Each line is a colon-separated key and value.
// The keys argument specifies required keys.
func GetSecrets(ctx context.Context, projectID string, keys []string) (map[string]string, error) {
	ev := strings.ToUpper(projectID) + "_SECRETS"
	uri := os.Getenv(ev)
	if uri == "" {
		return nil, fmt.Errorf("%s: %w", ev, ErrNoSecrets)
	}

	var (
		b   []byte
		err error
	)
	if strings.HasPrefix(uri, gsbScheme) {
		b, err = ReadGoogleStorageBucket(ctx, uri)
	} else {
		b, err = os.ReadFile(uri)
	}
	if err != nil {
		return nil, err
	}
	return parseSecrets(string(b), keys)
}

// parseSecrets splits one colon-separated secret per line, checking that
// every required key has a value.
func parseSecrets(s string, keys []string) (map[string]string, error) {
	// Strip carriage returns, if any.
	s = strings.ReplaceAll(s, "\r", "")
	m := filemap.Split(s, "\n", ":")
	for _, k := range keys {
		if m[k] == "" {
			return m, fmt.Errorf("missing key %s", k)
		}
	}
	return m, nil
}

// ReadGoogleStorageBucket reads the contents of the Google Storage
// bucket object specified by the URL, which must take the form
// gs://<bucket_name>/<object_name>.
func ReadGoogleStorageBucket(ctx context.Context, uri string) ([]byte, error) {
	bkt, obj, err := googleStorageAddr(uri)
	if err != nil {
		return nil, fmt.Errorf("invalid GSB URL %s: %w", uri, err)
	}

	clt, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create GSB client: %w", err)
	}
	defer clt.Close()

	r, err := clt.Bucket(bkt).Object(obj).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot create GSB reader: %w", err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return b, fmt.Errorf("cannot read GSB: %w", err)
	}
	return b, nil
}
