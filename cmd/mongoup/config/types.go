// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package config

type MongoupConfig struct {
	// Server: the mongod deployment being upgraded
	Server ServerConfig `yaml:"server"`

	// Install: where binaries come from and where they land
	Install InstallConfig `yaml:"install"`

	// Backup: mongodump safety net taken before the first step
	Backup BackupConfig `yaml:"backup"`

	// Logging: run log destination and verbosity
	Logging LoggingConfig `yaml:"logging"`
}

type ServerConfig struct {
	ConfigPath  string `yaml:"config_path"`  // e.g. /etc/mongod.conf
	DBPath      string `yaml:"db_path"`      // e.g. /var/lib/mongo
	URI         string `yaml:"uri"`          // e.g. mongodb://127.0.0.1:27017
	ServiceName string `yaml:"service_name"` // systemd unit; empty runs mongod directly
	LogPath     string `yaml:"log_path"`     // mongod log, watched during startup
}

type InstallConfig struct {
	// Variant selects the distro build, e.g. "rhel80" or "ubuntu2004".
	Variant string `yaml:"variant"`
	// DownloadURL is a template; {version} and {variant} are substituted.
	DownloadURL string `yaml:"download_url"`
	BinDir      string `yaml:"bin_dir"`   // e.g. /usr/local/bin
	CacheDir    string `yaml:"cache_dir"` // downloaded tarballs kept here
}

type BackupConfig struct {
	Enabled bool   `yaml:"enabled"`
	Root    string `yaml:"root"` // one timestamped directory per run
}

type LoggingConfig struct {
	Dir   string `yaml:"dir"`
	Level string `yaml:"level"` // debug, info, warn, error
}

func DefaultConfig() MongoupConfig {
	return MongoupConfig{
		Server: ServerConfig{
			ConfigPath:  "/etc/mongod.conf",
			DBPath:      "/var/lib/mongo",
			URI:         "mongodb://127.0.0.1:27017",
			ServiceName: "mongod",
			LogPath:     "/var/log/mongodb/mongod.log",
		},
		Install: InstallConfig{
			Variant:     "rhel80",
			DownloadURL: "https://fastdl.mongodb.org/linux/mongodb-linux-x86_64-{variant}-{version}.tgz",
			BinDir:      "/usr/local/bin",
			CacheDir:    "/var/cache/mongoup",
		},
		Backup: BackupConfig{
			Enabled: true,
			Root:    "/var/backups/mongoup",
		},
		Logging: LoggingConfig{
			Dir:   "~/.mongoup/logs",
			Level: "info",
		},
	}
}
