// Package browser attaches to a running Chromium instance over the DevTools
// protocol and exposes the page operations the automation agent drives.
//
// Unlike a launched browser, an attached one is owned by the user: Close
// detaches without killing the browser, and AbortCurrent stops in-flight
// page work without navigating away.
package browser

import (
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
)

const (
	// DefaultActionTimeout bounds individual page operations.
	DefaultActionTimeout = 30 * time.Second

	// DefaultSnapshotLength caps the cleaned HTML handed to the model.
	DefaultSnapshotLength = 40000
)

// Session is a live connection to a browser tab. Methods are safe for
// concurrent use; page operations are serialized under the session mutex,
// except AbortCurrent which deliberately bypasses it.
type Session struct {
	mu      sync.Mutex
	pw      *playwright.Playwright
	browser playwright.Browser
	page    playwright.Page
	cdpURL  string
}

// Connect attaches to the browser at cdpURL and adopts its active page.
// If the browser has no open page, a fresh one is created.
func Connect(cdpURL string) (*Session, error) {
	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to start playwright driver: %w", err)
	}

	br, err := pw.Chromium.ConnectOverCDP(cdpURL)
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("failed to connect to browser at %s: %w", cdpURL, err)
	}

	page, err := adoptPage(br)
	if err != nil {
		br.Close()
		pw.Stop()
		return nil, err
	}
	page.SetDefaultTimeout(float64(DefaultActionTimeout.Milliseconds()))

	return &Session{
		pw:      pw,
		browser: br,
		page:    page,
		cdpURL:  cdpURL,
	}, nil
}

// adoptPage picks the browser's current page, creating context and page as
// needed for a freshly started instance.
func adoptPage(br playwright.Browser) (playwright.Page, error) {
	contexts := br.Contexts()
	if len(contexts) == 0 {
		ctx, err := br.NewContext()
		if err != nil {
			return nil, fmt.Errorf("failed to create browser context: %w", err)
		}
		page, err := ctx.NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		return page, nil
	}

	pages := contexts[0].Pages()
	if len(pages) == 0 {
		page, err := contexts[0].NewPage()
		if err != nil {
			return nil, fmt.Errorf("failed to create page: %w", err)
		}
		return page, nil
	}
	// Last page is the frontmost tab in Chromium's ordering.
	return pages[len(pages)-1], nil
}

// CDPURL returns the endpoint this session is attached to.
func (s *Session) CDPURL() string {
	return s.cdpURL
}

// Navigate loads url in the session's page and waits for the load event.
func (s *Session) Navigate(url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	waitUntil := playwright.WaitUntilStateLoad
	if _, err := s.page.Goto(url, playwright.PageGotoOptions{WaitUntil: waitUntil}); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

// Click clicks the first element matching selector.
func (s *Session) Click(selector string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.page.Click(selector); err != nil {
		return fmt.Errorf("click on %q failed: %w", selector, err)
	}
	return nil
}

// Fill replaces the value of the input matching selector.
func (s *Session) Fill(selector, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.page.Fill(selector, value); err != nil {
		return fmt.Errorf("fill on %q failed: %w", selector, err)
	}
	return nil
}

// Snapshot captures the current page as cleaned HTML plus metadata.
func (s *Session) Snapshot() (*PageSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := s.page.Content()
	if err != nil {
		return nil, fmt.Errorf("failed to read page content: %w", err)
	}

	snap, err := buildSnapshot(raw, DefaultSnapshotLength)
	if err != nil {
		return nil, err
	}
	snap.URL = s.page.URL()
	if title, err := s.page.Title(); err == nil && title != "" {
		snap.Title = title
	}
	return snap, nil
}

// AbortCurrent stops in-flight loading and script work on the page. It
// does not take the session mutex so it can interrupt a blocked operation.
func (s *Session) AbortCurrent() error {
	if _, err := s.page.Evaluate("window.stop()"); err != nil {
		return fmt.Errorf("failed to stop page: %w", err)
	}
	return nil
}

// Close detaches from the browser without closing the user's tabs.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var firstErr error
	if err := s.browser.Close(); err != nil {
		firstErr = fmt.Errorf("failed to detach browser: %w", err)
	}
	if err := s.pw.Stop(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to stop playwright driver: %w", err)
	}
	return firstErr
}
