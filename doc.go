// Package hummer is a unit-of-work data-access layer on top of Bun.
//
// A Factory reads database options from a config.Source and keeps them
// current through change notifications. Each call to CreateUnitOfWork opens
// an independent session and builds a registry holding one generic
// repository per registered entity plus any custom repositories:
//
//	model := database.NewModel()
//	repository.MustRegister[User](model, 0)
//
//	factory, err := hummer.NewFactory(model, store,
//		hummer.WithRepositories(func() []hummer.RepositoryType {
//			return []hummer.RepositoryType{hummer.NewRepositoryType(NewUserRepository)}
//		}))
//
//	uow, err := factory.CreateUnitOfWork(ctx)
//	defer uow.Close()
//	users, _ := hummer.EntityRepository[User](uow)
//	_ = users.InsertOne(ctx, &User{Name: "tom"})
//	_ = uow.Save(ctx)
package hummer
