/*
Copyright 2025 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package vcenter

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/vmware/govmomi"
	"github.com/vmware/govmomi/vim25/methods"
	"github.com/vmware/govmomi/vim25/soap"
	ctrl "sigs.k8s.io/controller-runtime"

	"github.com/llm-d/vsphere-inventory-collector/internal/logging"
	"github.com/llm-d/vsphere-inventory-collector/internal/vsphere"
)

// Credentials locate and authenticate a vCenter.
type Credentials struct {
	// Host is a hostname or an SDK URL.
	Host     string
	Username string
	Password string
	// Insecure skips TLS certificate verification.
	Insecure bool
}

// Connector keeps one session per vCenter and logs in again when the session
// stops answering.
type Connector struct {
	creds Credentials

	mu      sync.Mutex
	session *govmomi.Client
	client  *Client
}

var _ vsphere.Connector = (*Connector)(nil)

// NewConnector returns a Connector. No connection is made until Connect.
func NewConnector(creds Credentials) *Connector {
	return &Connector{creds: creds}
}

func (c *Connector) Connect(ctx context.Context) (vsphere.Client, error) {
	logger := ctrl.LoggerFrom(ctx)
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session != nil {
		if _, err := methods.GetCurrentTime(ctx, c.session); err == nil {
			return c.client, nil
		}
		logger.Info("vCenter session no longer valid, logging in again", "host", c.creds.Host)
		c.session, c.client = nil, nil
	}

	u, err := soap.ParseURL(c.creds.Host)
	if err != nil {
		return nil, fmt.Errorf("parsing vCenter host %q: %w", c.creds.Host, err)
	}
	u.User = url.UserPassword(c.creds.Username, c.creds.Password)

	session, err := govmomi.NewClient(ctx, u, c.creds.Insecure)
	if err != nil {
		return nil, fmt.Errorf("logging in to %s: %w", u.Host, err)
	}
	logger.V(logging.DEBUG).Info("Opened vCenter session", "host", u.Host)
	c.session = session
	c.client = NewClient(session.Client)
	return c.client, nil
}

// Close logs the session out.
func (c *Connector) Close(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	err := c.session.Logout(ctx)
	c.session, c.client = nil, nil
	return err
}
