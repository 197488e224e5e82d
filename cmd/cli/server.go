package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/icon-project/btp2/common/cli"
	"github.com/icon-project/btp2/common/config"
	"github.com/icon-project/btp2/common/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/icon-project/contract-binder/api"
	"github.com/icon-project/contract-binder/artifact"
	"github.com/icon-project/contract-binder/contract"
	"github.com/icon-project/contract-binder/contract/eth"
	"github.com/icon-project/contract-binder/database"
	"github.com/icon-project/contract-binder/registry"
)

type Config struct {
	config.FileConfig `json:",squash"`

	Server    ServerConfig             `json:"server"`
	Networks  map[string]NetworkConfig `json:"networks"`
	Artifacts []ArtifactConfig         `json:"artifacts"`
	Database  database.Config          `json:"database"`
	CacheSize int                      `json:"cache_size,omitempty"`

	LogLevel     string            `json:"log_level"`
	ConsoleLevel string            `json:"console_level"`
	LogWriter    *log.WriterConfig `json:"log_writer,omitempty"`
}

type ServerConfig struct {
	Address      string `json:"address"`
	DumpLogLevel string `json:"dump_log_level,omitempty"`
}

type NetworkConfig struct {
	NetworkType string           `json:"type"`
	Endpoint    string           `json:"endpoint"`
	Options     contract.Options `json:"options,omitempty"`
}

// ArtifactConfig loads the contracts of a compiler output file. Name is used
// for a single contract meta file which carries no name.
type ArtifactConfig struct {
	Path string `json:"path"`
	Name string `json:"name,omitempty"`
}

func ReadConfig(filePath string, cfg *Config, vc *viper.Viper) error {
	f, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("fail to open config file=%s err=%+v", filePath, err)
	}
	vc.SetConfigType("json")
	err = vc.ReadConfig(f)
	if err != nil {
		return fmt.Errorf("fail to read config file=%s err=%+v", filePath, err)
	}
	if err = vc.Unmarshal(cfg, cli.ViperDecodeOptJson); err != nil {
		return fmt.Errorf("fail to unmarshall config from env err=%+v", err)
	}
	cfg.FilePath, _ = filepath.Abs(filePath)
	return nil
}

func MustEncodeOptions(v interface{}) contract.Options {
	opt, err := contract.EncodeOptions(v)
	if err != nil {
		log.Panicf("%+v", err)
	}
	return opt
}

// NewRegistry opens the deployment database and registers every configured
// artifact and network.
func NewRegistry(cfg *Config, l log.Logger) (*registry.Registry, error) {
	dbCfg := cfg.Database
	if dbCfg.Driver == "" || dbCfg.Driver == database.DriverSQLite {
		if dbCfg.DBName == "" {
			dbCfg.DBName = database.DefaultSQLiteDBName
		}
		if dbCfg.DBName != ":memory:" {
			dbCfg.DBName = cfg.ResolveAbsolute(dbCfg.DBName)
		}
	}
	db, err := database.OpenDatabase(dbCfg, l)
	if err != nil {
		return nil, err
	}
	repo, err := database.NewRepository[registry.Deployment](db, registry.TableDeployment)
	if err != nil {
		return nil, err
	}
	r, err := registry.New(repo, cfg.CacheSize, l)
	if err != nil {
		return nil, err
	}
	for _, ac := range cfg.Artifacts {
		as, err := artifact.LoadFile(cfg.ResolveAbsolute(ac.Path), ac.Name)
		if err != nil {
			return nil, err
		}
		for _, a := range as {
			name, err := r.AddArtifact(a)
			if err != nil {
				return nil, err
			}
			l.Infof("load artifact name:%s path:%s", name, ac.Path)
		}
	}
	for network, n := range cfg.Networks {
		c, err := contract.NewClient(n.NetworkType, n.Endpoint, n.Options, l)
		if err != nil {
			return nil, err
		}
		if err = r.AddClient(network, c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func NewServerCommand(parentCmd *cobra.Command, parentVc *viper.Viper, version, build string, logoLines []string) (*cobra.Command, *viper.Viper) {
	rootCmd, rootVc := cli.NewCommand(parentCmd, parentVc, "server", "Server management")
	cfg := &Config{}
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if cfgFilePath := rootVc.GetString("config"); cfgFilePath != "" {
			if err := ReadConfig(cfgFilePath, cfg, rootVc); err != nil {
				return err
			}
		}
		if err := rootVc.Unmarshal(&cfg, cli.ViperDecodeOptJson); err != nil {
			return fmt.Errorf("fail to unmarshall config from env err=%+v", err)
		}
		return nil
	}
	rootPFlags := rootCmd.PersistentFlags()
	rootPFlags.StringP("config", "c", "", "Parsing configuration file")
	rootPFlags.String("log_level", "debug", "Global log level (trace,debug,info,warn,error,fatal,panic)")
	rootPFlags.String("console_level", "trace", "Console log level (trace,debug,info,warn,error,fatal,panic)")
	rootPFlags.String("log_writer.filename", "binder.log", "Log file name (rotated files resides in same directory)")
	rootPFlags.Int("log_writer.maxsize", 100, "Maximum log file size in MiB")
	rootPFlags.Int("log_writer.maxage", 0, "Maximum age of log file in day")
	rootPFlags.Int("log_writer.maxbackups", 0, "Maximum number of backups")
	rootPFlags.Bool("log_writer.localtime", false, "Use localtime on rotated log file instead of UTC")
	rootPFlags.Bool("log_writer.compress", false, "Use gzip on rotated log file")
	//ServerConfig
	rootPFlags.String("server.address", "localhost:8080", "server address")
	rootPFlags.String("server.dump_log_level", "trace", "server dump log level (trace,debug,info)")
	//DatabaseConfig
	rootPFlags.String("database.driver", database.DriverSQLite, "database driver (sqlite,mysql,postgres)")
	rootPFlags.String("database.dbname", database.DefaultSQLiteDBName, "database name, file path for sqlite")
	rootPFlags.String("database.host", "", "database host")
	rootPFlags.Uint("database.port", 0, "database port")
	rootPFlags.String("database.user", "", "database user")
	rootPFlags.String("database.password", "", "database password")
	rootPFlags.Int("cache_size", registry.DefaultCacheSize, "number of cached bindings")
	cli.BindPFlags(rootVc, rootPFlags)

	saveCmd := &cobra.Command{
		Use:   "save [file]",
		Short: "Save configuration",
		Args:  cli.ArgsWithDefaultErrorFunc(cobra.ExactArgs(1)),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.ValidateFlagsWithViper(rootVc, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			saveFilePath := args[0]
			cfg.FilePath, _ = filepath.Abs(saveFilePath)
			cfg.BaseDir = cfg.ResolveRelative(cfg.BaseDir)

			if cfg.LogWriter != nil {
				cfg.LogWriter.Filename = cfg.ResolveRelative(cfg.LogWriter.Filename)
			}

			if example, err := cmd.Flags().GetBool("example"); err != nil {
				return err
			} else if example {
				if len(cfg.Networks) == 0 {
					cfg.Networks = map[string]NetworkConfig{
						eth.NetworkTypeEth + "Network": {
							NetworkType: eth.NetworkTypeEth,
							Endpoint:    "http://localhost:8545",
							Options: MustEncodeOptions(eth.ClientOption{
								TransportLogLevel: contract.LogLevel(log.TraceLevel),
							}),
						},
					}
				}
				if len(cfg.Artifacts) == 0 {
					cfg.Artifacts = []ArtifactConfig{
						{Path: "/path/to/combined.json"},
						{Path: "/path/to/Token.json", Name: "Token"},
					}
				}
			}

			if err := cli.JsonPrettySaveFile(saveFilePath, 0644, cfg); err != nil {
				return err
			}
			cmd.Println("Save configuration to", saveFilePath)
			return nil
		},
	}
	rootCmd.AddCommand(saveCmd)
	saveCmd.Flags().Bool("example", false, "example")

	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return cli.ValidateFlagsWithViper(rootVc, cmd.Flags())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, l := range logoLines {
				log.Println(l)
			}
			log.Printf("Version : %s", version)
			log.Printf("Build   : %s", build)

			l := log.GlobalLogger()
			if cfg.LogWriter != nil {
				var lwCfg log.WriterConfig
				lwCfg = *cfg.LogWriter
				lwCfg.Filename = cfg.ResolveAbsolute(lwCfg.Filename)
				writer, err := log.NewWriter(&lwCfg)
				if err != nil {
					log.Panicf("Fail to make writer err=%+v", err)
				}
				err = l.SetFileWriter(writer)
				if err != nil {
					log.Panicf("Fail to set file logger err=%+v", err)
				}
			}

			if lv, err := log.ParseLevel(cfg.LogLevel); err != nil {
				log.Panicf("Invalid log_level=%s", cfg.LogLevel)
			} else {
				l.SetLevel(lv)
			}
			if lv, err := log.ParseLevel(cfg.ConsoleLevel); err != nil {
				log.Panicf("Invalid console_level=%s", cfg.ConsoleLevel)
			} else {
				l.SetConsoleLevel(lv)
			}
			modLevels, _ := cmd.Flags().GetStringToString("mod_level")
			for mod, lvStr := range modLevels {
				if lv, err := log.ParseLevel(lvStr); err != nil {
					log.Panicf("Invalid mod_level mod=%s level=%s", mod, lvStr)
				} else {
					l.SetModuleLevel(mod, lv)
				}
			}
			serverDumpLogLevel, err := log.ParseLevel(cfg.Server.DumpLogLevel)
			if err != nil {
				return err
			}
			r, err := NewRegistry(cfg, l)
			if err != nil {
				return err
			}
			s := api.NewServer(cfg.Server.Address, r, serverDumpLogLevel, l)
			cli.OnInterrupt(func() {
				if err := s.Stop(); err != nil {
					l.Warnf("fail to Stop err:%+v", err)
				}
			})
			if err = s.Start(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
	rootCmd.AddCommand(startCmd)
	startFlags := startCmd.Flags()
	startFlags.StringToString("mod_level", nil, "Set console log level for specific module ('mod'='level',...)")
	startFlags.MarkHidden("mod_level")
	return rootCmd, rootVc
}
