package config

import "strings"

type Cors struct {
	file *FileValues
}

var _ CorsConfig = Cors{}

type AllowedOrigins map[string]struct{}
type nullValue = struct{}

func (a AllowedOrigins) IsAllowedOrigin(origin string) bool {
	_, ok := a[origin]
	return ok
}

func (a AllowedOrigins) String() string {
	var origins []string
	for k := range a {
		origins = append(origins, k)
	}
	return strings.Join(origins, ", ")
}

// GetAllowedOrigins returns ALLOWED_ORIGINS (comma separated), the file list,
// or just this server's own origin.
func (c Cors) GetAllowedOrigins() AllowedOrigins {
	origins := AllowedOrigins{}
	raw := GetEnv("ALLOWED_ORIGINS", "")
	switch {
	case raw != "":
		for _, o := range strings.Split(raw, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins[o] = nullValue{}
			}
		}
	case len(c.file.Server.AllowedOrigins) > 0:
		for _, o := range c.file.Server.AllowedOrigins {
			origins[o] = nullValue{}
		}
	default:
		origins[EnvVars{file: c.file}.GetOrigin()] = nullValue{}
	}
	return origins
}

func (Cors) GetAllowedMethods() string {
	return "GET, POST, PUT, DELETE"
}

func (Cors) GetAllowedHeaders() string {
	return "Content-Type, Authorization"
}
