package migrations

func init() {
	Migrations.MustRegister(up("0003_create_profiles.sql"), drop("profiles"))
}
