// Package config loads supplydash configuration.
//
// Configuration comes from three layers, later layers winning:
//
//  1. built-in defaults (GetDefaultConfig)
//  2. a YAML file, supplydash.yaml in the working directory or the path
//     passed with --config
//  3. environment variables, optionally seeded from a .env file
//
// Recognised environment variables:
//
//	PORT                            server.port
//	DB_HOST, DB_PORT, DB_USER,      database.*; setting DB_HOST enables the database
//	DB_PASSWORD, DB_NAME
//	SUPPLYDASH_OAUTH_HOST           oauth.host
//	SUPPLYDASH_OAUTH_CLIENT_ID      oauth.clientId
//	SUPPLYDASH_OAUTH_CLIENT_SECRET  oauth.clientSecret
//	SUPPLYDASH_REFRESH_TOKEN_FILE   tokenStore.file.path
//	SUPPLYDASH_REDIS_URL            tokenStore.redis.url (selects the redis store)
//
// Validate collects every problem into ValidationErrors so operators see all
// mistakes at once.
//
// Example configuration:
//
//	server:
//	  port: 3000
//	  staticDir: public
//	oauth:
//	  host: tenant.eu.qlikcloud.com
//	  clientId: abc123
//	tunnel:
//	  mountPrefix: /tunnel
//	  aliasPrefixes: [/qlik-ws]
//	tokenStore:
//	  type: file
//	  file:
//	    path: data/refresh_token
package config
