package remote

import (
	"fmt"
	"strings"
	"sync"
)

// Family groups the candidate base URLs of one kind of service.
type Family string

const (
	// FamilyDecode serves /decode, /decodeId and /searchPn.
	FamilyDecode Family = "decode"
	// FamilyExtra serves /DRAM and /micron-online.
	FamilyExtra Family = "extra"
)

// Families lists every known family.
var Families = []Family{FamilyDecode, FamilyExtra}

// ParseFamily accepts the family name or its short alias (fd, fe).
func ParseFamily(s string) (Family, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "decode", "fd", "flash_detect":
		return FamilyDecode, nil
	case "extra", "fe", "flash_extra":
		return FamilyExtra, nil
	}
	return "", fmt.Errorf("unknown endpoint family %q (want decode or extra)", s)
}

// NormalizeBaseURL prefixes http:// when no scheme is given and strips
// trailing slashes.
func NormalizeBaseURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(strings.ToLower(u), "http") {
		u = "http://" + u
	}
	return strings.TrimRight(u, "/")
}

// Endpoints holds the ordered candidate lists. Order is significant: the
// first list member that answers wins. Safe for concurrent use.
type Endpoints struct {
	mu    sync.RWMutex
	lists map[Family][]string
}

// NewEndpoints builds a registry from initial lists, normalizing each URL.
func NewEndpoints(initial map[Family][]string) *Endpoints {
	e := &Endpoints{lists: make(map[Family][]string)}
	for f, urls := range initial {
		e.Replace(f, urls)
	}
	return e
}

// List returns a copy of the candidates for f.
func (e *Endpoints) List(f Family) []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]string(nil), e.lists[f]...)
}

// Snapshot copies every list.
func (e *Endpoints) Snapshot() map[Family][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(map[Family][]string, len(e.lists))
	for f, urls := range e.lists {
		out[f] = append([]string(nil), urls...)
	}
	return out
}

// Add appends url to f and returns the normalized form.
func (e *Endpoints) Add(f Family, url string) (string, error) {
	url = NormalizeBaseURL(url)
	if url == "" {
		return "", fmt.Errorf("endpoint url is empty")
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.lists[f] = append(e.lists[f], url)
	return url, nil
}

// Insert places url at index. Negative indexes count from the end and
// out-of-range indexes are clamped.
func (e *Endpoints) Insert(f Family, index int, url string) (string, error) {
	url = NormalizeBaseURL(url)
	if url == "" {
		return "", fmt.Errorf("endpoint url is empty")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.lists[f]
	if index < 0 {
		index += len(list)
		if index < 0 {
			index = 0
		}
	}
	if index > len(list) {
		index = len(list)
	}

	next := make([]string, 0, len(list)+1)
	next = append(next, list[:index]...)
	next = append(next, url)
	next = append(next, list[index:]...)
	e.lists[f] = next
	return url, nil
}

// Remove deletes the first occurrence of url, reporting whether it was present.
func (e *Endpoints) Remove(f Family, url string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	list := e.lists[f]
	for i, u := range list {
		if u == url || u == NormalizeBaseURL(url) {
			e.lists[f] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every candidate of f and returns how many there were.
func (e *Endpoints) Clear(f Family) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := len(e.lists[f])
	e.lists[f] = nil
	return n
}

// Replace swaps the whole list for f.
func (e *Endpoints) Replace(f Family, urls []string) {
	next := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = NormalizeBaseURL(u); u != "" {
			next = append(next, u)
		}
	}
	e.mu.Lock()
	e.lists[f] = next
	e.mu.Unlock()
}
