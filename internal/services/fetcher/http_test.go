package fetcher

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	config "github.com/NordCoder/Pricewatch/internal/config/tracker"
	"github.com/NordCoder/Pricewatch/internal/domain/item"
)

const (
	metaPage = `<html><head><meta itemprop="price" content="49.99"></head><body><span class="price">$60.00</span></body></html>`
	custom   = `<html><body><div id="p">$1,299.00</div><meta itemprop="price" content="5"></body></html>`
	soldOut  = `<html><body><span class="price">19,99 €</span><link itemprop="availability" href="https://schema.org/OutOfStock"></body></html>`
	ldPage   = `<html><head><script type="application/ld+json">{"@type":"Product","offers":{"price":"24.50","availability":"https://schema.org/InStock"}}</script></head></html>`
	noPrice  = `<html><body><h1>Nothing here</h1></body></html>`
)

func newFetchServer(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{"/meta": metaPage, "/custom": custom, "/soldout": soldOut, "/ld": ldPage, "/none": noPrice}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "pricewatch-test" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		switch r.URL.Path {
		case "/gone":
			w.WriteHeader(http.StatusGone)
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/broken":
			w.WriteHeader(http.StatusBadGateway)
		case "/slow":
			time.Sleep(200 * time.Millisecond)
			_, _ = w.Write([]byte(metaPage))
		default:
			body, ok := pages[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusTeapot)
				return
			}
			_, _ = w.Write([]byte(body))
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestFetcher(srv *httptest.Server, timeout time.Duration) *HTTPFetcher {
	return NewHTTP(srv.Client(), config.FetchCfg{
		Timeout:   timeout,
		UserAgent: "pricewatch-test",
		Selectors: []config.SelectorCfg{{Domain: "Custom.Shop", CSS: "#p"}},
	}, zap.NewNop())
}

func fetch(t *testing.T, f *HTTPFetcher, src item.Source) (item.Observation, error) {
	t.Helper()
	return f.FetchPrice(context.Background(), &item.TrackedItem{ID: "i1"}, src)
}

func TestHTTPFetcher_Selectors(t *testing.T) {
	srv := newFetchServer(t)
	f := newTestFetcher(srv, time.Second)

	obs, err := fetch(t, f, item.Source{Name: "meta", URL: srv.URL + "/meta"})
	require.NoError(t, err)
	assert.Equal(t, 49.99, obs.Price)
	assert.True(t, obs.Available)
	assert.Equal(t, "meta", obs.Source)
	assert.False(t, obs.At.IsZero())

	obs, err = fetch(t, f, item.Source{Name: "custom", Domain: "custom.shop", URL: srv.URL + "/custom"})
	require.NoError(t, err)
	assert.Equal(t, 1299.0, obs.Price, "the per-domain selector goes first")

	obs, err = fetch(t, f, item.Source{Name: "ld", URL: srv.URL + "/ld"})
	require.NoError(t, err)
	assert.Equal(t, 24.5, obs.Price)
	assert.True(t, obs.Available)
}

func TestHTTPFetcher_OutOfStock(t *testing.T) {
	srv := newFetchServer(t)
	obs, err := fetch(t, newTestFetcher(srv, time.Second), item.Source{Name: "s", URL: srv.URL + "/soldout"})
	require.NoError(t, err)
	assert.Equal(t, 19.99, obs.Price)
	assert.False(t, obs.Available)
}

func TestHTTPFetcher_GoneIsUnavailable(t *testing.T) {
	srv := newFetchServer(t)
	f := newTestFetcher(srv, time.Second)
	for _, path := range []string{"/gone", "/missing"} {
		obs, err := fetch(t, f, item.Source{Name: "s", URL: srv.URL + path})
		require.NoError(t, err, path)
		assert.False(t, obs.Available, path)
	}
}

func TestHTTPFetcher_Errors(t *testing.T) {
	srv := newFetchServer(t)
	f := newTestFetcher(srv, 50*time.Millisecond)

	_, err := fetch(t, f, item.Source{Name: "s", URL: srv.URL + "/broken"})
	assert.ErrorContains(t, err, "status code 502")

	_, err = fetch(t, f, item.Source{Name: "s", URL: srv.URL + "/none"})
	assert.ErrorIs(t, err, ErrPriceNotFound)

	_, err = fetch(t, f, item.Source{Name: "s", URL: srv.URL + "/slow"})
	assert.Error(t, err)
}

func TestDomainOf(t *testing.T) {
	assert.Equal(t, "shop.example", domainOf(item.Source{URL: "https://www.Shop.Example/p/1"}))
	assert.Equal(t, "given", domainOf(item.Source{Domain: "Given", URL: "https://other"}))
}

func TestCleanURL(t *testing.T) {
	assert.Equal(t, "https://shop.example/p", cleanURL(" shop.example/p#reviews "))
	assert.Equal(t, "http://x/y", cleanURL("http://x/y"))
}

func TestFake(t *testing.T) {
	f := NewFake()
	f.Now = func() time.Time { return time.Unix(0, 0) }
	it := &item.TrackedItem{ID: "i1", CurrentPrice: 30}
	f.Set("i1", "a", Quote{Price: 25})

	obs, err := f.FetchPrice(context.Background(), it, item.Source{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, 25.0, obs.Price)
	assert.True(t, obs.Available)

	_, err = f.FetchPrice(context.Background(), it, item.Source{Name: "b"})
	assert.ErrorIs(t, err, ErrNoQuote)

	obs, err = f.EchoLast().FetchPrice(context.Background(), it, item.Source{Name: "b"})
	require.NoError(t, err)
	assert.Equal(t, 30.0, obs.Price)
	assert.Equal(t, 1, f.Calls("i1", "a"))
	assert.Equal(t, 2, f.Calls("i1", "b"))
}
