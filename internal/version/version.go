package version

// Version mapmaker のバージョン番号
const Version = "1.4.0"

// UserAgent タイル取得時の User-Agent
func UserAgent() string {
	return "mapmaker/" + Version
}
