package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/wfunc/partyserver/models"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Timer    TimerConfig    `mapstructure:"timer"`
	Games    GamesConfig    `mapstructure:"games"`
}

type ServerConfig struct {
	HTTPAddress  string        `mapstructure:"http_address"`
	RPCAddress   string        `mapstructure:"rpc_address"`
	ReadLimit    int64         `mapstructure:"read_limit"`
	PingPeriod   time.Duration `mapstructure:"ping_period"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	AllowOrigins []string      `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

type DatabaseConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	URL         string        `mapstructure:"url"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	RoomTTL     time.Duration `mapstructure:"room_ttl"`
	RateLimit   int           `mapstructure:"rate_limit"`
	RateWindow  time.Duration `mapstructure:"rate_window"`
	PoolSize    int           `mapstructure:"pool_size"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
}

type TimerConfig struct {
	Tick time.Duration `mapstructure:"tick"`
}

type GamesConfig struct {
	TieBreak       string        `mapstructure:"tie_break"`
	NextRoundDelay time.Duration `mapstructure:"next_round_delay"`
	Acting         ActingConfig  `mapstructure:"acting"`
	Trivia         TriviaConfig  `mapstructure:"trivia"`
	Cards          CardsConfig   `mapstructure:"cards"`
}

type ActingConfig struct {
	Rounds          int      `mapstructure:"rounds"`
	TimeLimit       int      `mapstructure:"time_limit"`
	MovieCategories []string `mapstructure:"movie_categories"`
}

type TriviaConfig struct {
	MaxPlayersPerTeam int      `mapstructure:"max_players_per_team"`
	HeadToHeadTime    int      `mapstructure:"head_to_head_time"`
	MovieRoundTime    int      `mapstructure:"movie_round_time"`
	MovieCategories   []string `mapstructure:"movie_categories"`
}

type CardsConfig struct {
	TimePerTurn        int  `mapstructure:"time_per_turn"`
	IncludeUniqueCards bool `mapstructure:"include_unique_cards"`
	TargetScore        int  `mapstructure:"target_score"`
}

// Settings converts the games section into validated room defaults and the
// tie-break policy.
func (g GamesConfig) Settings() (models.DefaultSettings, models.TieBreak, error) {
	defaults := models.DefaultSettings{
		Acting: models.ActingSettings{
			Rounds:          g.Acting.Rounds,
			TimeLimit:       g.Acting.TimeLimit,
			MovieCategories: g.Acting.MovieCategories,
		},
		Trivia: models.TriviaSettings{
			MaxPlayersPerTeam: g.Trivia.MaxPlayersPerTeam,
			HeadToHeadTime:    g.Trivia.HeadToHeadTime,
			MovieRoundTime:    g.Trivia.MovieRoundTime,
			MovieCategories:   g.Trivia.MovieCategories,
		},
		Cards: models.CardSettings{
			TimePerTurn:        g.Cards.TimePerTurn,
			IncludeUniqueCards: g.Cards.IncludeUniqueCards,
			TargetScore:        g.Cards.TargetScore,
		},
	}
	for _, err := range []error{defaults.Acting.Validate(), defaults.Trivia.Validate(), defaults.Cards.Validate()} {
		if err != nil {
			return models.DefaultSettings{}, "", err
		}
	}
	tieBreak, err := models.ParseTieBreak(g.TieBreak)
	if err != nil {
		return models.DefaultSettings{}, "", err
	}
	return defaults, tieBreak, nil
}

// LoadConfig reads config.yaml from path, overlaid by PARTY_* environment
// variables. A missing config file is not an error; a .env file in the
// working directory is loaded first when present.
func LoadConfig(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("party")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":9090")
	v.SetDefault("server.read_limit", 64*1024)
	v.SetDefault("server.ping_period", 25*time.Second)
	v.SetDefault("server.send_buffer", 64)
	v.SetDefault("server.allow_origins", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.driver", "gorm")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.user", "postgres")
	v.SetDefault("database.postgres.password", "")
	v.SetDefault("database.postgres.dbname", "partyserver")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379")
	v.SetDefault("redis.key_prefix", "party")
	v.SetDefault("redis.room_ttl", 10*time.Minute)
	v.SetDefault("redis.rate_limit", 20)
	v.SetDefault("redis.rate_window", time.Second)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.dial_timeout", 5*time.Second)

	v.SetDefault("timer.tick", 50*time.Millisecond)

	v.SetDefault("games.tie_break", "roster-order")
	v.SetDefault("games.next_round_delay", 3*time.Second)
	v.SetDefault("games.acting.rounds", 5)
	v.SetDefault("games.acting.time_limit", 300)
	v.SetDefault("games.acting.movie_categories", []string{"hollywood", "bollywood"})
	v.SetDefault("games.trivia.max_players_per_team", 6)
	v.SetDefault("games.trivia.head_to_head_time", 45)
	v.SetDefault("games.trivia.movie_round_time", 60)
	v.SetDefault("games.trivia.movie_categories", []string{"bollywood"})
	v.SetDefault("games.cards.time_per_turn", 30)
	v.SetDefault("games.cards.include_unique_cards", true)
	v.SetDefault("games.cards.target_score", 500)
}
