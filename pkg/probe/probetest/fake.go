// Package probetest provides in-memory browser engines for tests.
package probetest

import (
	"os"
	"sync"
	"time"

	"github.com/entrhq/qarunner/pkg/probe"
)

// Page is a scripted probe.PageSession.
type Page struct {
	mu sync.Mutex

	Status      int
	GotoErr     error
	LoadErr     error
	FinalURL    string
	PageTitle   string
	Body        string
	Counts      map[string]int
	CountErr    error
	EvalResult  interface{}
	EvalErr     error
	ShotErr     error
	PanicOnGoto bool

	Visited []string
	Shots   []string
	Closed  bool
}

var _ probe.PageSession = (*Page)(nil)

// NewPage returns a page that answers every navigation with status.
func NewPage(status int) *Page {
	return &Page{Status: status, Counts: map[string]int{}}
}

func (p *Page) Goto(url string, _ probe.WaitUntil, _ time.Duration) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.PanicOnGoto {
		panic("scripted panic")
	}
	p.Visited = append(p.Visited, url)
	if p.GotoErr != nil {
		return 0, p.GotoErr
	}
	if p.FinalURL == "" {
		p.FinalURL = url
	}
	return p.Status, nil
}

func (p *Page) WaitForLoadState(probe.WaitUntil, time.Duration) error { return p.LoadErr }

func (p *Page) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.FinalURL
}

func (p *Page) Title() (string, error) { return p.PageTitle, nil }

func (p *Page) Count(selector string) (int, error) {
	if p.CountErr != nil {
		return 0, p.CountErr
	}
	return p.Counts[selector], nil
}

func (p *Page) TextContent(string) (string, error) { return p.Body, nil }

func (p *Page) Evaluate(string) (interface{}, error) { return p.EvalResult, p.EvalErr }

// Screenshot writes a placeholder file so callers can assert on its existence.
func (p *Page) Screenshot(path string, _ bool) error {
	if p.ShotErr != nil {
		return p.ShotErr
	}
	if err := os.WriteFile(path, []byte("png"), 0o644); err != nil {
		return err
	}
	p.mu.Lock()
	p.Shots = append(p.Shots, path)
	p.mu.Unlock()
	return nil
}

func (p *Page) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Closed = true
	return nil
}

// Driver is a scripted probe.DriverSession.
type Driver struct {
	mu sync.Mutex

	GetErr       error
	WaitErr      error
	FinalURL     string
	PageTitle    string
	Counts       map[string]int
	Interactable bool
	InteractErr  error

	Visited []string
	Closed  bool
}

var _ probe.DriverSession = (*Driver)(nil)

// NewDriver returns a driver with no elements on the page.
func NewDriver() *Driver {
	return &Driver{Counts: map[string]int{}}
}

func (d *Driver) Get(url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Visited = append(d.Visited, url)
	if d.GetErr != nil {
		return d.GetErr
	}
	if d.FinalURL == "" {
		d.FinalURL = url
	}
	return nil
}

func (d *Driver) WaitForElement(string, time.Duration) error { return d.WaitErr }

func (d *Driver) CurrentURL() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.FinalURL, nil
}

func (d *Driver) Title() (string, error) { return d.PageTitle, nil }

func (d *Driver) Count(selector string) (int, error) { return d.Counts[selector], nil }

func (d *Driver) FirstInteractable(string) (bool, error) { return d.Interactable, d.InteractErr }

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}
