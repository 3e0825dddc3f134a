package migrations

func init() {
	Migrations.MustRegister(up("0002_create_quiz_results.sql"), drop("quiz_results"))
}
