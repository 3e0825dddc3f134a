package migrations

func init() {
	Migrations.MustRegister(up("0001_create_community_quizzes.sql"), drop("community_quizzes"))
}
