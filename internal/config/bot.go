package config

import "github.com/caarlos0/env/v11"

type BotConfig struct {
	BaseURL   string `env:"RELAY_URL" envDefault:"http://localhost:8080"`
	SessionID string `env:"SESSION_ID"`
	GameName  string `env:"GAME_NAME" envDefault:"bot-duel"`
	Player    string `env:"PLAYER_NAME" envDefault:"bot"`
}

func LoadBot() (BotConfig, error) {
	var cfg BotConfig
	err := env.Parse(&cfg)
	return cfg, err
}
