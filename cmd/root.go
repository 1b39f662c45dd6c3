// Package cmd는 mainboard CLI의 명령어를 정의합니다.
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/insajin/autopus-mainboard/internal/config"
	"github.com/insajin/autopus-mainboard/internal/logger"
	"github.com/insajin/autopus-mainboard/internal/mainboard"
	"github.com/insajin/autopus-mainboard/internal/metrics"
	"github.com/insajin/autopus-mainboard/pkg/classloader"
	"github.com/insajin/autopus-mainboard/pkg/registry"
)

var (
	// 전역 플래그
	cfgFile   string
	verbose   bool
	dashboard bool

	// 버전 정보 (main에서 주입)
	appVersion   string
	appCommit    string
	appBuildDate string
)

// rootCmd는 DAG 파일의 모듈을 로드하고 종료 신호까지 실행합니다.
var rootCmd = &cobra.Command{
	Use:   "mainboard [-d DAG_FILE]... [DAG_FILE]...",
	Short: "플러그인 모듈을 로드하고 실행합니다",
	Long: `mainboard는 DAG 설정 파일에 선언된 플러그인 라이브러리를 로드하고
컴포넌트를 생성, 초기화한 뒤 SIGINT/SIGTERM을 받을 때까지 실행합니다.

-d 뒤에 이어지는 인자도 DAG 파일로 취급합니다.
  mainboard -d planning.dag control.dag -p planning_group

플러그인은 기본적으로 -buildmode=plugin으로 빌드한 Go 플러그인이며
RegisterClasses 심볼을 export해야 합니다. loader.backend=native는
registry.Link로 바이너리에 링크된 진입점을 가진 라이브러리만 로드합니다.

--dashboard를 지정하면 라이브러리 참조 수, 컴포넌트, 리소스를
실시간으로 보여주는 TUI 대시보드를 띄웁니다.
  q          대시보드 종료 (mainboard도 종료)
  r          수동 새로고침
  d          선택한 컴포넌트 상세 보기
  tab        패널 전환
  up/down    컴포넌트 목록 스크롤`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 로거 초기화
		return initLogger()
	},
	RunE: runMainboard,
}

// Execute는 루트 명령어를 실행합니다.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersionInfo는 버전 정보를 설정합니다.
func SetVersionInfo(version, commit, buildDate string) {
	appVersion = version
	appCommit = commit
	appBuildDate = buildDate
}

// GetVersionInfo는 버전 정보를 반환합니다.
func GetVersionInfo() (version, commit, buildDate string) {
	return appVersion, appCommit, appBuildDate
}

func init() {
	cobra.OnInitialize(initConfig)

	// 전역 플래그 정의
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"설정 파일 경로 (기본값: ~/.config/autopus/mainboard.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"상세 로그 출력 (debug 레벨)")

	flags := rootCmd.Flags()
	flags.StringArrayP("dag_conf", "d", nil, "모듈 DAG 설정 파일 (반복 가능)")
	flags.StringP("process_group", "p", "", "모듈을 실행할 process group (기본값: "+config.DefaultProcessGroup+")")
	flags.StringP("sched_name", "s", "", "프로세스 전체의 스케줄 정책 이름 (기본값: "+config.DefaultSchedName+")")
	flags.String("metrics-addr", "", "Prometheus 메트릭 주소 (지정하면 metrics를 활성화)")
	flags.BoolVar(&dashboard, "dashboard", false, "실행 중 TUI 대시보드 표시 (q: 종료)")

	_ = viper.BindPFlag("mainboard.dag_conf", flags.Lookup("dag_conf"))
	_ = viper.BindPFlag("mainboard.process_group", flags.Lookup("process_group"))
	_ = viper.BindPFlag("mainboard.sched_name", flags.Lookup("sched_name"))
	_ = viper.BindPFlag("metrics.addr", flags.Lookup("metrics-addr"))
}

// initConfig는 설정 파일을 초기화합니다.
// 설정 우선순위: 플래그 > 환경변수 > 설정파일 > 기본값
func initConfig() {
	if cfgFile != "" {
		// 명시적 설정 파일 사용
		viper.SetConfigFile(cfgFile)
	} else {
		// 기본 설정 경로: ~/.config/autopus/mainboard.yaml
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "홈 디렉토리를 찾을 수 없습니다: %v\n", err)
			os.Exit(1)
		}

		viper.AddConfigPath(filepath.Join(home, ".config", "autopus"))
		viper.SetConfigName("mainboard")
		viper.SetConfigType("yaml")
	}

	// 환경변수 자동 바인딩 (MAINBOARD_ 접두사, 점은 밑줄로)
	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// 기본값 설정
	config.SetDefaults(viper.GetViper())

	// 설정 파일 읽기 (없어도 오류 아님)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			// 설정 파일이 있지만 읽기 실패한 경우만 오류
			fmt.Fprintf(os.Stderr, "설정 파일 읽기 실패: %v\n", err)
		}
	}
}

// initLogger는 로거를 초기화합니다.
func initLogger() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("설정 로드 실패: %w", err)
	}

	// verbose 플래그가 설정되면 debug 레벨로 오버라이드
	if verbose {
		cfg.Logging.Level = "debug"
	}

	logger.Setup(cfg.Logging)
	return nil
}

// loadConfig는 검증된 설정을 반환합니다.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("설정 로드 실패: %w", err)
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("설정 검증 실패: %w", err)
	}
	return cfg, nil
}

// newRegistry는 설정된 로더 백엔드로 레지스트리를 만듭니다.
func newRegistry(cfg *config.Config) (*registry.Registry, error) {
	opener, err := cfg.Loader.Opener()
	if err != nil {
		return nil, err
	}
	return registry.New(
		registry.WithOpener(opener),
		registry.WithLogger(logger.Component("registry")),
	), nil
}

func runMainboard(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("metrics-addr") {
		viper.Set("metrics.enabled", true)
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	arg := mainboard.ParseArgument(os.Args[0], cfg.Mainboard.DagConf, args,
		cfg.Mainboard.ProcessGroup, cfg.Mainboard.SchedName)
	arg.Log(logger.Component("mainboard"))
	if len(arg.DagConfList) == 0 {
		fmt.Fprint(cmd.ErrOrStderr(), arg.Usage())
		return mainboard.ErrNoDagConf
	}

	reg, err := newRegistry(cfg)
	if err != nil {
		return err
	}
	m := metrics.Default()
	manager := classloader.NewManager(
		classloader.WithRegistry(reg),
		classloader.WithMetrics(m),
		classloader.WithLogger(logger.Component("classloader")),
	)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, cfg.Metrics.Path, m); err != nil {
				logger.Warn().Err(err).Str("addr", cfg.Metrics.Addr).Msg("메트릭 엔드포인트 실패")
			}
		}()
	}

	controller := mainboard.NewController(arg,
		mainboard.WithManager(manager),
		mainboard.WithMetrics(m),
		mainboard.WithLogger(logger.Component("controller")),
	)
	if err := controller.Init(ctx); err != nil {
		controller.Clear()
		logger.Error().Err(err).Msg("모듈 시작 실패")
		return err
	}

	if dashboard {
		// 대시보드가 화면을 쓰므로 파일 로그가 아니면 로그를 버립니다.
		if cfg.Logging.File == "" {
			logger.SetupWithWriter(cfg.Logging, io.Discard)
		}
		err = runDashboard(ctx, newLiveProvider(controller, manager, m))
	} else {
		// 종료 신호 대기
		<-ctx.Done()
	}
	controller.Clear()
	if err != nil {
		return err
	}

	if data, err := m.ToJSON(); err == nil {
		logger.Info().RawJSON("metrics", data).Msg("mainboard 종료")
	}
	return nil
}
