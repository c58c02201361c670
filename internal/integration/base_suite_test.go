package integration_test

import (
	"context"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/metinatakli/showtime-booking/internal/app"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"golang.org/x/sync/errgroup"
)

const (
	dbName         = "showtime_booking"
	dbUser         = "test_user"
	dbPassword     = "test_password"
	dbImageName    = "postgres:17-alpine"
	cacheImageName = "redis:7"
)

type BaseSuite struct {
	suite.Suite
	app            *TestApp
	dbContainer    *PostgresContainer
	cacheContainer *RedisContainer
}

// SetupSuite starts postgres and redis side by side and builds one app on
// top of them for every test in the suite.
func (s *BaseSuite) SetupSuite() {
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() (err error) {
		s.dbContainer, err = getDbContainer(ctx)
		return err
	})
	g.Go(func() (err error) {
		s.cacheContainer, err = getCacheContainer(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		log.Printf("failed to start containers: %s", err)
		s.T().FailNow()
	}

	testApp, err := newTestApp(testConfig(s.dbContainer.ConnectionString, s.cacheContainer.ConnectionString))
	if err != nil {
		log.Printf("cannot initialize app: %s", err)
		s.T().FailNow()
	}

	s.app = testApp
}

func testConfig(dsn, redisAddr string) app.Config {
	return app.Config{
		Env:                  "test",
		Store:                app.StorePostgres,
		ManualPaymentConfirm: true,
		DB: app.DBConfig{
			DSN:          dsn,
			MaxOpenConns: 25,
			MaxIdleTime:  15 * time.Minute,
		},
		Redis: app.RedisConfig{
			URL:          redisAddr,
			MaxOpenConns: 30,
			MaxIdleConns: 10,
			MaxIdleTime:  2 * time.Minute,
		},
	}
}

func (s *BaseSuite) SetupTest() {
	s.app.reset(s.T())
}

func (s *BaseSuite) TearDownSuite() {
	if s.app != nil {
		s.app.close()
	}

	for _, c := range []testcontainers.Container{s.dbContainerRef(), s.cacheContainerRef()} {
		if c == nil {
			continue
		}
		if err := testcontainers.TerminateContainer(c); err != nil {
			log.Printf("failed to terminate container: %s", err)
		}
	}
}

func (s *BaseSuite) dbContainerRef() testcontainers.Container {
	if s.dbContainer == nil {
		return nil
	}
	return s.dbContainer.Container
}

func (s *BaseSuite) cacheContainerRef() testcontainers.Container {
	if s.cacheContainer == nil {
		return nil
	}
	return s.cacheContainer.Container
}

type Scenario struct {
	Name             string
	Method           string
	URL              string
	Body             io.Reader
	Headers          map[string]string
	ExpectedStatus   int
	ExpectedResponse string
	BeforeTestFunc   func(t testing.TB, app *TestApp)
	AfterTestFunc    func(t testing.TB, app *TestApp, res *http.Response)
}

func (s Scenario) Run(t *testing.T, testApp *TestApp) {
	t.Run(s.Name, func(t *testing.T) {
		req, err := prepareRequest(s.Method, s.URL, s.Body, s.Headers)
		require.NoError(t, err)

		if s.BeforeTestFunc != nil {
			s.BeforeTestFunc(t, testApp)
		}

		rec := httptest.NewRecorder()
		testApp.App.Routes().ServeHTTP(rec, req)

		res := rec.Result()
		defer res.Body.Close()

		assert.Equal(t, s.ExpectedStatus, res.StatusCode)

		if s.ExpectedResponse != "" {
			compareResponse(t, res.Body, s.ExpectedResponse)
		}

		if s.AfterTestFunc != nil {
			s.AfterTestFunc(t, testApp, res)
		}
	})
}
