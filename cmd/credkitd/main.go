// Command credkitd serves the account and resume API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/credkit/pkg/config"
	"github.com/dmitrymomot/credkit/pkg/email"
	"github.com/dmitrymomot/credkit/pkg/file"
	"github.com/dmitrymomot/credkit/pkg/httpserver"
	"github.com/dmitrymomot/credkit/pkg/jwt"
	"github.com/dmitrymomot/credkit/pkg/logger"
	"github.com/dmitrymomot/credkit/pkg/metrics"
	"github.com/dmitrymomot/credkit/pkg/otp"
	"github.com/dmitrymomot/credkit/pkg/password"
	"github.com/dmitrymomot/credkit/pkg/pg"
	"github.com/dmitrymomot/credkit/pkg/ratelimiter"
	"github.com/dmitrymomot/credkit/pkg/redis"
	"github.com/dmitrymomot/credkit/pkg/requestid"
	"github.com/dmitrymomot/credkit/pkg/secrets"
	"github.com/dmitrymomot/credkit/svc/account"
	"github.com/dmitrymomot/credkit/svc/httpapi"
	"github.com/dmitrymomot/credkit/svc/memstore"
	"github.com/dmitrymomot/credkit/svc/notify"
	"github.com/dmitrymomot/credkit/svc/pgstore"
	"github.com/dmitrymomot/credkit/svc/resume"
)

const serviceName = "credkitd"

type appConfig struct {
	Logger   logger.Config
	HTTP     httpserver.Config
	API      httpapi.Config
	Redis    redis.Config
	Email    email.Config
	S3       file.S3Config
	OTP      otp.Config
	Password password.Config
	Account  account.Config
	Resume   resume.Config

	// DatabaseURL selects Postgres. When empty every store lives in memory
	// and nothing survives a restart.
	DatabaseURL string `env:"DATABASE_URL"`
	StorageDir  string `env:"STORAGE_DIR" envDefault:"./var/resumes"`

	TokenSigningKey string        `env:"TOKEN_SIGNING_KEY,required"`
	TokenKeyID      string        `env:"TOKEN_KEY_ID" envDefault:"k1"`
	TokenIssuer     string        `env:"TOKEN_ISSUER" envDefault:"credkit"`
	AccessTTL       time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"30m"`
	RefreshTTL      time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"168h"`

	DocumentKey   string `env:"DOCUMENT_ENCRYPTION_KEY,required"`
	DocumentKeyID uint8  `env:"DOCUMENT_KEY_ID" envDefault:"1"`

	ProductName   string        `env:"PRODUCT_NAME" envDefault:"Secure Job Platform"`
	SweepInterval time.Duration `env:"OTP_SWEEP_INTERVAL" envDefault:"10m"`
}

// Validate implements config.Validator.
func (c *appConfig) Validate() error {
	if c.OTP.Pepper == "" {
		return errors.New("OTP_PEPPER is required")
	}
	if len(c.TokenSigningKey) < 32 {
		return errors.New("TOKEN_SIGNING_KEY must be at least 32 bytes")
	}
	return nil
}

func main() {
	cfg, err := config.Load[appConfig]()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(append(
		logger.FromConfig(cfg.Logger, serviceName),
		logger.WithContextExtractors(requestid.Extractor()),
	)...)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("credkitd stopped", logger.Error(err))
		os.Exit(1)
	}
}

type stores struct {
	users       account.UserStore
	enrollments account.EnrollmentStore
	documents   resume.DocumentStore
	challenges  otp.Store
	checks      []httpserver.Check
	close       func()
}

func run(ctx context.Context, cfg appConfig, log *slog.Logger) error {
	reg := metrics.NewRegistry()
	rec := metrics.NewCollector(reg)

	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	var rdb *goredis.Client
	if cfg.Redis.Enabled() {
		rdb, err = redis.Connect(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		st.checks = append(st.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(rdb)})
	}

	blobs, err := openBlobStorage(ctx, cfg)
	if err != nil {
		return err
	}

	signing, err := jwt.NewStaticKeys(cfg.TokenKeyID, []byte(cfg.TokenSigningKey))
	if err != nil {
		return fmt.Errorf("token key: %w", err)
	}
	tokens, err := jwt.New(signing,
		jwt.WithIssuer(cfg.TokenIssuer),
		jwt.WithAccessTTL(cfg.AccessTTL),
		jwt.WithRefreshTTL(cfg.RefreshTTL),
		jwt.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("token service: %w", err)
	}

	master, err := secrets.ParseKey(cfg.DocumentKey)
	if err != nil {
		return fmt.Errorf("document key: %w", err)
	}
	keyring, err := secrets.NewStaticKeyring(cfg.DocumentKeyID, master)
	if err != nil {
		return fmt.Errorf("document key: %w", err)
	}

	challenges, err := otp.NewManager(st.challenges, cfg.OTP, otp.WithLogger(log))
	if err != nil {
		return fmt.Errorf("otp manager: %w", err)
	}

	hasher, err := password.NewFromConfig(cfg.Password)
	if err != nil {
		return fmt.Errorf("password hasher: %w", err)
	}

	sender, err := emailSender(cfg.Email, log)
	if err != nil {
		return err
	}

	resumes, err := resume.New(st.documents, blobs, secrets.NewCipher(keyring), cfg.Resume,
		resume.WithLogger(log),
		resume.WithMetrics(rec),
	)
	if err != nil {
		return fmt.Errorf("resume service: %w", err)
	}

	accounts, err := account.New(account.Deps{
		Users:       st.users,
		Enrollments: st.enrollments,
		Challenges:  challenges,
		Hasher:      hasher,
		Tokens:      tokens,
		Secrets:     secrets.NewCipher(keyring, secrets.WithContext(account.TOTPSecretContext)),
		Notifier: notify.NewMailer(sender,
			notify.WithProduct(cfg.ProductName),
			notify.WithSupportEmail(cfg.Email.SupportEmail),
		),
	}, cfg.Account,
		account.WithLogger(log),
		account.WithMetrics(rec),
		account.WithDeleteHook(resumes.PurgeOwner),
	)
	if err != nil {
		return fmt.Errorf("account service: %w", err)
	}
	defer accounts.Wait()

	var limits ratelimiter.Store
	if rdb != nil {
		limits = redis.NewRateStore(rdb, "credkit:rl")
	} else {
		mem := ratelimiter.NewMemoryStore()
		defer mem.Close()
		limits = mem
	}

	handler, err := httpapi.New(httpapi.Deps{
		Accounts: accounts,
		Resumes:  resumes,
		Tokens:   tokens,
		Limits:   limits,
		Metrics:  rec,
		Gatherer: reg,
		Checks:   st.checks,
		Log:      log,
	}, cfg.API)
	if err != nil {
		return fmt.Errorf("http api: %w", err)
	}

	sweepOpts := []otp.SweeperOption{
		otp.WithInterval(cfg.SweepInterval),
		otp.WithSweeperLogger(log),
		otp.WithOnSweep(rec.RecordSweep),
	}
	if rdb != nil {
		sweepOpts = append(sweepOpts, otp.WithLocker(redis.NewLocker(rdb)))
	}
	sweeper := otp.NewSweeper(st.challenges, sweepOpts...)

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	sweepDone := make(chan struct{})
	go func() {
		defer close(sweepDone)
		if err := sweeper.Run(sweepCtx); err != nil {
			log.ErrorContext(ctx, "sweeper stopped", logger.Component("otp"), logger.Error(err))
		}
	}()
	defer func() {
		cancelSweep()
		<-sweepDone
	}()

	srv := httpserver.NewFromConfig(cfg.HTTP, httpserver.WithLogger(log))
	return srv.Run(ctx, handler)
}

func openStores(ctx context.Context, cfg appConfig, log *slog.Logger) (*stores, error) {
	if cfg.DatabaseURL == "" {
		log.WarnContext(ctx, "DATABASE_URL not set, using in-memory stores")
		mem := memstore.New()
		return &stores{
			users:       mem,
			enrollments: mem,
			documents:   mem,
			challenges:  otp.NewMemoryStore(time.Now),
			close:       func() {},
		}, nil
	}

	pgCfg, err := config.Load[pg.Config]()
	if err != nil {
		return nil, fmt.Errorf("postgres config: %w", err)
	}
	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pg.Migrate(ctx, pool, pgstore.Migrations, pgstore.MigrationsDir, pgCfg, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	store := pgstore.New(pool)
	return &stores{
		users:       store,
		enrollments: store,
		documents:   store,
		challenges:  store.Challenges(),
		checks:      []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(pool)}},
		close:       pool.Close,
	}, nil
}

func openBlobStorage(ctx context.Context, cfg appConfig) (file.Storage, error) {
	if cfg.S3.Bucket != "" {
		s, err := file.NewS3Storage(ctx, cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("s3 storage: %w", err)
		}
		return s, nil
	}
	s, err := file.NewLocalStorage(cfg.StorageDir)
	if err != nil {
		return nil, fmt.Errorf("local storage: %w", err)
	}
	return s, nil
}

func emailSender(cfg email.Config, log *slog.Logger) (email.EmailSender, error) {
	if cfg.PostmarkEnabled() {
		c, err := email.NewPostmarkClient(cfg)
		if err != nil {
			return nil, fmt.Errorf("postmark: %w", err)
		}
		return c, nil
	}
	log.Warn("postmark not configured, writing emails to disk", slog.String("dir", cfg.DevDir))
	return email.NewDevSender(cfg.DevDir), nil
}
