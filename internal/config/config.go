package config // package config loads application configuration from environment variables

import (
    "log"     // log is used to report configuration errors and halt execution
    "os"      // os provides access to environment variables
    "strconv" // strconv converts strings to other types
    "time"    // time resolves the scheduling timezone
)

// Config holds the runtime configuration of the exam scheduling service.
// Required values are enforced by must(); optional ones fall back to the
// defaults documented next to each field.
type Config struct {
    Env            string         // application environment (e.g. "dev", "prod")
    Port           string         // HTTP port to listen on
    DBUser         string         // database username
    DBPass         string         // database password (optional)
    DBHost         string         // database host address
    DBPort         string         // database port number
    DBName         string         // database name
    DBAutoMigrate  bool           // apply schema.sql and seed reference data on start (default true)
    JWTSecret      string         // secret used to sign JWTs
    AccessTTLMin   int            // access token time‑to‑live in minutes
    RefreshTTLDays int            // refresh token time‑to‑live in days
    BcryptCost     int            // bcrypt cost for password hashing
    Location       *time.Location // timezone that decides which exam dates have passed (default Asia/Jakarta)
    AdminEmail     string         // bootstrap administrator, created when missing (optional)
    AdminPassword  string         // password of the bootstrap administrator
}

// Load reads configuration values from environment variables and returns a
// Config.  Missing required variables cause the program to exit with a
// fatal log message.
func Load() Config {
    return Config{
        Env:            must("APP_ENV"),
        Port:           must("APP_PORT"),
        DBUser:         must("DB_USER"),
        DBPass:         os.Getenv("DB_PASS"), // empty allowed
        DBHost:         must("DB_HOST"),
        DBPort:         must("DB_PORT"),
        DBName:         must("DB_NAME"),
        DBAutoMigrate:  envBool("DB_AUTO_MIGRATE", true),
        JWTSecret:      must("JWT_SECRET"),
        AccessTTLMin:   mustInt("ACCESS_TOKEN_TTL_MIN"),
        RefreshTTLDays: mustInt("REFRESH_TOKEN_TTL_DAYS"),
        BcryptCost:     mustInt("BCRYPT_COST"),
        Location:       mustLocation(envStr("APP_TIMEZONE", "Asia/Jakarta")),
        AdminEmail:     os.Getenv("ADMIN_EMAIL"),
        AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
    }
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
    v, ok := os.LookupEnv(key)
    if !ok || v == "" {
        log.Fatalf("missing required env var: %s", key)
    }
    return v
}

// mustInt is like must() but converts the retrieved string into an integer.
func mustInt(key string) int {
    s := must(key)
    n, err := strconv.Atoi(s)
    if err != nil {
        log.Fatalf("invalid int for %s: %q", key, s)
    }
    return n
}

func mustLocation(name string) *time.Location {
    loc, err := time.LoadLocation(name)
    if err != nil {
        log.Fatalf("invalid APP_TIMEZONE %q: %v", name, err)
    }
    return loc
}
