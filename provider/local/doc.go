// Package local implements accounts.IdentityProvider on top of a bun
// database. Passwords are stored as bcrypt hashes and sessions are HS256
// signed access and refresh JWTs.
//
//	provider, err := local.New(db, local.DefaultConfig(os.Getenv("ACCOUNTS_LOCAL_SIGNING_KEY")))
//	if err != nil {
//		return err
//	}
//	svc := accounts.NewAccountService(provider, accounts.NewProfileRepository(db))
//
// Migrations for the local_identities table are exposed through Migrations
// and must be applied alongside the profile migrations:
//
//	err := accounts.Migrate(ctx, client, logger, local.Migrations())
package local
