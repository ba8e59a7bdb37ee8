package config

// defaultConfig 組み込みの設定。ユーザーの config.ini で上書きする
const defaultConfig = `[mapmaker]
parallel_downloads  = 8
requests_per_second = 0
user_agent =

[services]
osm         = https://tile.openstreetmap.org/{z}/{x}/{y}.png
topo        = https://{s}.tile.opentopomap.org/{z}/{x}/{y}.png
human       = http://{s}.tile.openstreetmap.fr/hot/{z}/{x}/{y}.png
hillshading = http://tiles.wmflabs.org/hillshading/{z}/{x}/{y}.png
bw          = https://tiles.wmflabs.org/bw-mapnik/{z}/{x}/{y}.png
nolabels    = https://tiles.wmflabs.org/osm-no-labels/{z}/{x}/{y}.png

voyager            = https://{s}.basemaps.cartocdn.com/rastertiles/voyager_labels_under/{z}/{x}/{y}.png
voyager-nolabel    = https://{s}.basemaps.cartocdn.com/rastertiles/voyager_nolabels/{z}/{x}/{y}.png
positron           = https://{s}.basemaps.cartocdn.com/rastertiles/light_all/{z}/{x}/{y}.png
positron-nolabel   = https://{s}.basemaps.cartocdn.com/rastertiles/light_nolabels/{z}/{x}/{y}.png
darkmatter         = https://{s}.basemaps.cartocdn.com/rastertiles/dark_all/{z}/{x}/{y}.png
darkmatter-nolabel = https://{s}.basemaps.cartocdn.com/rastertiles/dark_nolabels/{z}/{x}/{y}.png

landscape = http://tile.thunderforest.com/landscape/{z}/{x}/{y}.png?apikey={api}
outdoors  = http://tile.thunderforest.com/outdoors/{z}/{x}/{y}.png?apikey={api}
atlas     = https://tile.thunderforest.com/atlas/{z}/{x}/{y}.png?apikey={api}

grey       = https://maps.geoapify.com/v1/tile/osm-bright-grey/{z}/{x}/{y}.png?apiKey={api}
smooth     = https://maps.geoapify.com/v1/tile/osm-bright-smooth/{z}/{x}/{y}.png?apiKey={api}
toner-grey = https://maps.geoapify.com/v1/tile/toner-grey/{z}/{x}/{y}.png?apiKey={api}
klokantech = https://maps.geoapify.com/v1/tile/klokantech-basic/{z}/{x}/{y}.png?apiKey={api}

satellite         = https://api.mapbox.com/styles/v1/mapbox/satellite-v9/tiles/{z}/{x}/{y}?access_token={api}
satellite-streets = https://api.mapbox.com/styles/v1/mapbox/satellite-streets-v11/tiles/{z}/{x}/{y}?access_token={api}
streets           = https://api.mapbox.com/styles/v1/mapbox/streets-v11/tiles/{z}/{x}/{y}?access_token={api}
hike              = https://api.mapbox.com/styles/v1/mapbox/outdoors-v11/tiles/{z}/{x}/{y}?access_token={api}

[keys]
tile.thunderforest.com = <YOUR_API_KEY>
maps.geoapify.com      = <YOUR_API_KEY>
api.mapbox.com         = <YOUR_API_KEY>

[copyright]
openstreetmap.org = © OpenStreetMap contributors
openstreetmap.fr  = © OpenStreetMap contributors
opentopomap.org   = © OpenStreetMap contributors
wmflabs.org       = © OpenStreetMap contributors
cartocdn.com      = Maps © Carto, Data © OpenStreetMap contributors
geoapify.com      = Powered by Geoapify | © OpenStreetMap contributors
thunderforest.com = Maps © Thunderforest, Data © OpenStreetMap contributors
mapbox.com        = © Mapbox © OpenStreetMap contributors

[cache]
dir          =
limit        = 256000000
trust_hours  = 24
memory_tiles = 100

[redis]
addr      =
password  =
db        = 0
ttl_hours = 168

[discord]
token         =
guild_id      =
settings_path =
`
