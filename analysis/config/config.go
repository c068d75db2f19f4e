// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"path"

	"github.com/awslabs/ar-go-pta/internal/funcutil"
	"gopkg.in/yaml.v3"
)

var (
	// The global config file
	configFile string
)

// SetGlobalConfig sets the global config filename
func SetGlobalConfig(filename string) {
	configFile = filename
}

// LoadGlobal loads the config file that has been set by SetGlobalConfig
func LoadGlobal() (*Config, error) {
	return Load(configFile)
}

// Config contains the options of the analyses and the queries to run.
// If some field is not defined in the config file, it will be empty/zero in the struct.
// private fields are not populated from a yaml file, but computed after initialization
type Config struct {
	Options

	sourceFile string

	// ptsReportFile is a file name in ReportsDir when ReportPts is true
	ptsReportFile string

	// Queries lists the pointers queried by the demand-driven analyses
	Queries []QuerySpec `yaml:"queries"`

	// AliasQueries lists the pairs of pointers queried by the alias clients
	AliasQueries []AliasQuerySpec `yaml:"alias-queries"`
}

// QuerySpec identifies a pointer to query, by the name of its value in the program
type QuerySpec struct {
	// Value is the name of the queried value
	Value string `yaml:"value"`

	// Mode is one of flow, context or path. Empty means all the modes.
	Mode string `yaml:"mode"`
}

// AliasQuerySpec is a pair of values to check for aliasing
type AliasQuerySpec struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Options are the analysis options
type Options struct {
	// ReportsDir is the directory where all the reports will be stored. If the yaml config file this config struct has
	// been loaded does not specify a ReportsDir but sets any Report* option to true, then ReportsDir will be created
	// in the folder the binary is called.
	ReportsDir string `yaml:"reports-dir"`

	// ReportPts specifies whether the points-to sets computed by the whole-program analysis should be dumped in
	// a file pts-*.out in the reports directory
	ReportPts bool `yaml:"report-pts"`

	// PtsBackend is either "mutable" or "persistent"
	PtsBackend string `yaml:"pts-backend"`

	// FieldLimit is the maximum number of field objects of a base object before it is made field-insensitive
	FieldLimit int `yaml:"field-limit"`

	// SCCInterval is the number of nodes processed by the whole-program solver between two cycle detections
	SCCInterval int `yaml:"scc-interval"`

	// OnTheFlyCallgraph lets the demand-driven analyses resolve indirect calls themselves, instead of using the
	// call graph of the whole-program analysis
	OnTheFlyCallgraph bool `yaml:"on-the-fly-callgraph"`

	// FlowBudget, CxtBudget and PathBudget bound the number of steps of a single demand-driven query
	FlowBudget int `yaml:"flow-budget"`
	CxtBudget  int `yaml:"cxt-budget"`
	PathBudget int `yaml:"path-budget"`

	// MaxCxtLen is the maximum length of a call string
	MaxCxtLen int `yaml:"max-cxt-len"`

	// CxtInsensitiveCycles makes the call and return edges inside a cycle of the value-flow graph
	// context-insensitive: moving along them leaves the call string unchanged
	CxtInsensitiveCycles bool `yaml:"cxt-insensitive-cycles"`

	// MaxPathLen is the maximum number of value-flow edges in a path condition
	MaxPathLen int `yaml:"max-path-len"`

	// FreeFunctions names the functions releasing the heap object their argument points to. The leak checker
	// uses their call arguments as sinks.
	FreeFunctions []string `yaml:"free-functions"`

	// CheckPtsCache enables the consistency checks of the persistent points-to cache
	CheckPtsCache bool `yaml:"check-pts-cache"`

	// Loglevel controls the verbosity of the tool
	LogLevel int `yaml:"log-level"`

	// Suppress warnings
	SilenceWarn bool `yaml:"silence-warn"`
}

// NewDefault returns an empty default config.
func NewDefault() *Config {
	return &Config{
		sourceFile:    "",
		ptsReportFile: "",
		Queries:       nil,
		AliasQueries:  nil,
		Options: Options{
			ReportsDir:        "",
			ReportPts:         false,
			PtsBackend:        DefaultPtsBackend,
			FieldLimit:        DefaultFieldLimit,
			SCCInterval:       DefaultSCCInterval,
			OnTheFlyCallgraph: false,
			FlowBudget:        DefaultFlowBudget,
			CxtBudget:         DefaultCxtBudget,
			PathBudget:        DefaultPathBudget,
			MaxCxtLen:         DefaultMaxCxtLen,
			MaxPathLen:        DefaultMaxPathLen,
			FreeFunctions:     []string{DefaultFreeFunction},
			CheckPtsCache:     false,
			LogLevel:          int(InfoLevel),
			SilenceWarn:       false,
		},
	}
}

// Load reads a configuration from a file
func Load(filename string) (*Config, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("could not read config file: %w", err)
	}
	return LoadBytes(filename, b)
}

// LoadBytes reads a configuration from the contents b of the file filename
func LoadBytes(filename string, b []byte) (*Config, error) {
	cfg := NewDefault()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("could not unmarshal config file: %w", err)
	}

	cfg.sourceFile = filename

	if cfg.ReportPts {
		if err := setReportsDir(cfg, filename); err != nil {
			return nil, err
		}
	}

	cfg.normalize()

	for _, q := range cfg.Queries {
		if !funcutil.Contains([]string{"", ModeFlow, ModeContext, ModePath}, q.Mode) {
			return nil, fmt.Errorf("invalid mode %q for query of %s", q.Mode, q.Value)
		}
	}
	return cfg, nil
}

// normalize replaces the invalid option values by their defaults
func (c *Config) normalize() {
	// If logLevel has not been specified (i.e. it is 0) set the default to Info
	if c.LogLevel == 0 {
		c.LogLevel = int(InfoLevel)
	}
	if c.PtsBackend != PtsBackendMutable && c.PtsBackend != PtsBackendPersistent {
		c.PtsBackend = DefaultPtsBackend
	}
	setDefault := func(x *int, def int) {
		if *x <= 0 {
			*x = def
		}
	}
	setDefault(&c.FieldLimit, DefaultFieldLimit)
	setDefault(&c.SCCInterval, DefaultSCCInterval)
	setDefault(&c.FlowBudget, DefaultFlowBudget)
	setDefault(&c.CxtBudget, DefaultCxtBudget)
	setDefault(&c.PathBudget, DefaultPathBudget)
	setDefault(&c.MaxCxtLen, DefaultMaxCxtLen)
	setDefault(&c.MaxPathLen, DefaultMaxPathLen)
	if len(c.FreeFunctions) == 0 {
		c.FreeFunctions = []string{DefaultFreeFunction}
	}
}

func setReportsDir(c *Config, filename string) error {
	if c.ReportsDir == "" {
		tmpdir, err := os.MkdirTemp(path.Dir(filename), "*-report")
		if err != nil {
			return fmt.Errorf("could not create temp dir for reports")
		}
		c.ReportsDir = tmpdir

		reportFile, err := os.CreateTemp(c.ReportsDir, "pts-*.out")
		if err != nil {
			return fmt.Errorf("could not create report file for points-to sets")
		}
		c.ptsReportFile = reportFile.Name()
		reportFile.Close() // the file will be reopened as needed
	} else {
		err := os.Mkdir(c.ReportsDir, 0750)
		if err != nil {
			if !os.IsExist(err) {
				return fmt.Errorf("could not create directory %s", c.ReportsDir)
			}
		}
		c.ptsReportFile = path.Join(c.ReportsDir, "pts.out")
	}
	return nil
}

// PtsReportFile returns the file name that will contain the dump of the points-to sets
func (c Config) PtsReportFile() string {
	return c.ptsReportFile
}

// RelPath returns filename path relative to the config source file
func (c Config) RelPath(filename string) string {
	return path.Join(path.Dir(c.sourceFile), filename)
}

// Persistent returns true if the points-to stores should be hash-consed
func (c Config) Persistent() bool {
	return c.PtsBackend == PtsBackendPersistent
}

// Budget returns the step budget of the demand-driven analysis in the given mode
func (c Config) Budget(mode string) int {
	switch mode {
	case ModeContext:
		return c.CxtBudget
	case ModePath:
		return c.PathBudget
	default:
		return c.FlowBudget
	}
}

// QueriesFor returns the names of the values to query in the given mode
func (c Config) QueriesFor(mode string) []string {
	var res []string
	for _, q := range c.Queries {
		if q.Mode == "" || q.Mode == mode {
			res = append(res, q.Value)
		}
	}
	return res
}
