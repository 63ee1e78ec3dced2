// porter - A Telegram <-> OneBot (QQ/WeChat) relay bridge.
// Copyright (C) 2025 The Porter Authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
package porter

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

type TelegramConfig struct {
	AdminID      int64  `toml:"admin_id"`
	APIID        int    `toml:"api_id"`
	APIHash      string `toml:"api_hash"`
	BotToken     string `toml:"bot_token"`
	ProxyURL     string `toml:"proxy_url"`
	EnableSearch bool   `toml:"enable_search"`
}

type OneBotConfig struct {
	Addr  string `toml:"addr"`
	Token string `toml:"token"`
}

type GeneralConfig struct {
	LogLevel string `toml:"log_level"`
}

type Config struct {
	Telegram TelegramConfig `toml:"telegram"`
	OneBot   OneBotConfig   `toml:"onebot"`
	General  GeneralConfig  `toml:"general"`
}

// LoadConfig reads and validates the TOML config at path.
func LoadConfig(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) Validate() error {
	if cfg.Telegram.APIID == 0 {
		return fmt.Errorf("telegram.api_id is required")
	}
	if cfg.Telegram.APIHash == "" {
		return fmt.Errorf("telegram.api_hash is required")
	}
	if cfg.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token is required")
	}
	if cfg.Telegram.AdminID == 0 {
		return fmt.Errorf("telegram.admin_id is required")
	}
	if cfg.OneBot.Addr == "" {
		return fmt.Errorf("onebot.addr is required")
	}
	_, err := cfg.LogLevel()
	return err
}

// LogLevel parses general.log_level, defaulting to info when unset.
func (cfg *Config) LogLevel() (zerolog.Level, error) {
	if cfg.General.LogLevel == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(cfg.General.LogLevel)
	if err != nil {
		return level, fmt.Errorf("unknown log level %q", cfg.General.LogLevel)
	}
	return level, nil
}
