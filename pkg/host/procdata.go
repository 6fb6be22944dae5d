package host

import (
	"encoding/json"
	"errors"

	"sigs.k8s.io/yaml"
)

// ProcData carries all the attributes needed to set up a proc on a host.
// It is the schema of the proc.yaml file that rides along with every
// deployed proc.
type ProcData struct {
	AppName          string `json:"app_name,omitempty"`
	AppRepoURL       string `json:"app_repo_url,omitempty"`
	AppRepoType      string `json:"app_repo_type,omitempty"`
	AppFolder        string `json:"app_folder,omitempty"`
	BuildpackURL     string `json:"buildpack_url,omitempty"`
	BuildpackVersion string `json:"buildpack_version,omitempty"`
	BuildURL         string `json:"build_url,omitempty"`
	BuildMD5         string `json:"build_md5,omitempty"`
	ImageURL         string `json:"image_url,omitempty"`
	ImageName        string `json:"image_name,omitempty"`
	ImageMD5         string `json:"image_md5,omitempty"`
	ConfigName       string `json:"config_name,omitempty"`
	Version          string `json:"version,omitempty"`
	ReleaseHash      string `json:"release_hash,omitempty"`
	Host             string `json:"host,omitempty"`
	Port             int    `json:"port,omitempty"`
	User             string `json:"user,omitempty"`
	Group            string `json:"group,omitempty"`
	ProcName         string `json:"proc_name,omitempty"`
	Cmd              string `json:"cmd,omitempty"`
	MemLimit         string `json:"mem_limit,omitempty"`
	MemswLimit       string `json:"memsw_limit,omitempty"`

	Env      map[string]string      `json:"env,omitempty"`
	Settings map[string]interface{} `json:"settings,omitempty"`
	Volumes  [][]string             `json:"volumes,omitempty"`

	// LegacyProc is the key older proc.yaml files used for ProcName.
	LegacyProc string `json:"proc,omitempty"`
}

// ErrNoProcName means a proc.yaml document named neither a proc nor a
// command to run.
var ErrNoProcName = errors.New("must provide either proc_name or cmd")

// ParseProcData decodes a proc.yaml document, accepting the legacy "proc"
// key for proc_name.  One of proc_name or cmd must be present.
func ParseProcData(data []byte) (*ProcData, error) {
	var pd ProcData
	if err := yaml.Unmarshal(data, &pd); err != nil {
		return nil, err
	}
	if err := pd.normalize(); err != nil {
		return nil, err
	}
	return &pd, nil
}

func (pd *ProcData) normalize() error {
	if pd.ProcName == "" && pd.LegacyProc != "" {
		pd.ProcName = pd.LegacyProc
		pd.LegacyProc = ""
	}
	if pd.ProcName == "" && pd.Cmd == "" {
		return ErrNoProcName
	}
	return nil
}

// AsYAML renders the proc.yaml document.
func (pd *ProcData) AsYAML() ([]byte, error) {
	return yaml.Marshal(pd)
}

// procDataFromMap rebuilds ProcData from a loosely-typed settings map, as
// returned by the Supervisor plugin RPC.
func procDataFromMap(settings map[string]interface{}) (*ProcData, error) {
	raw, err := json.Marshal(settings)
	if err != nil {
		return nil, err
	}
	var pd ProcData
	if err := json.Unmarshal(raw, &pd); err != nil {
		return nil, err
	}
	if err := pd.normalize(); err != nil {
		return nil, err
	}
	return &pd, nil
}
