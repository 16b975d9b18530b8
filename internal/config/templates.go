package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "deploy":
		return deployTemplate, nil
	case "agent":
		return agentTemplate, nil
	case "packages":
		return packagesTemplate, nil
	case "plugins":
		return pluginsTemplate, nil
	case "assets":
		return assetsTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const deployTemplate = `mode: dev
agent_binary: voiced
agent_config: voiced.toml
data_root: local
unbuffered: true
package_manager: ""

manifests:
  packages: manifests/packages.toml
  plugins: manifests/plugins.toml
  assets: manifests/assets.toml

modes:
  start:
    unbuffered: true

# remote:
#   host: edge-node-1
#   user: ops
#   key_path: ~/.ssh/id_ed25519
#   deploy_config: /opt/voicectl/deploy.yml
`

const agentTemplate = `worker_id = "voiced.local"
data_root = "local"
asset_manifest = "manifests/assets.toml"
heartbeat_interval = "5s"
admin_addr = ""
admin_token = ""
cors_origins = ["http://localhost:3000"]
drain_timeout = "2s"
`

const packagesTemplate = `version = 1

[apt]
packages = [
  "ffmpeg",
  "libopus0",
  "libopusfile0",
  "libsndfile1",
  "build-essential",
]

[apk]
packages = [
  "ffmpeg",
  "opus",
  "opusfile",
  "libsndfile",
  "build-base",
]

[brew]
packages = [
  "ffmpeg",
  "opus",
  "opusfile",
  "libsndfile",
]
`

const pluginsTemplate = `version = 1

[[plugin]]
name = "silero-vad"
kind = "vad"
version = "5.1.2"
url = "https://plugins.example.com/silero-vad/5.1.2/silero-vad_linux_amd64.tar.gz"
digest = "0000000000000000000000000000000000000000000000000000000000000000"

[[plugin]]
name = "deepgram-stt"
kind = "stt"
version = "1.4.0"
url = "https://plugins.example.com/deepgram-stt/1.4.0/deepgram-stt_linux_amd64.tar.gz"
digest = "0000000000000000000000000000000000000000000000000000000000000000"

[[plugin]]
name = "cartesia-tts"
kind = "tts"
version = "0.9.3"
url = "https://plugins.example.com/cartesia-tts/0.9.3/cartesia-tts_linux_amd64.tar.zst"
digest = "0000000000000000000000000000000000000000000000000000000000000000"
`

const assetsTemplate = `version = 1

[[asset]]
name = "silero-vad-model"
path = "vad/silero_vad.onnx"
url = "https://models.example.com/silero/v5/silero_vad.onnx"
digest = "0000000000000000000000000000000000000000000000000000000000000000"
size = 2327524
compression = "none"

[[asset]]
name = "turn-detector-weights"
path = "turn/turn_detector.onnx"
url = "https://models.example.com/turn-detector/v1/turn_detector.onnx.gz"
digest = "0000000000000000000000000000000000000000000000000000000000000000"
size = 0
compression = "gzip"
`
